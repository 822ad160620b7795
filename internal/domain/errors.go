package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a leaderboard session has not been initialized.
	ErrSessionNotFound = errors.New("leaderboard session not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded or generated.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrEvaluationInFlight rejects re-submission while a grading call is pending.
	ErrEvaluationInFlight = errors.New("evaluation already in flight for question")
	// ErrAlreadyEvaluated rejects submissions for questions in a terminal state.
	ErrAlreadyEvaluated = errors.New("question already evaluated")
	// ErrDocumentNotFound indicates an unknown upload ID.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNotOwner is returned when a caller acts on a document it does not own.
	ErrNotOwner = errors.New("document owned by another user")
)
