package domain

import "time"

// Participant is an identified user tracked by the leaderboard.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Level       int    `json:"level"`
	Score       int    `json:"score"`
	Online      bool   `json:"isOnline"`
}

// ScoreDelta is an incremental score change attributed to one participant
// and optionally one question. Immutable once emitted.
type ScoreDelta struct {
	ParticipantID string
	Amount        int
	QuestionID    string
	Timestamp     time.Time
}

// RankedEntry pairs a participant with its computed leaderboard position.
// Derived state: recomputed on every delta, never stored independently.
type RankedEntry struct {
	Rank        int         `json:"rank"`
	Participant Participant `json:"participant"`
}

// Question models an MCQ question. CorrectIndex points into Options.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"question"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex int      `json:"correctAnswer"`
	Explanation  string   `json:"explanation,omitempty"`
	Points       int      `json:"points"` // defaults to 1 if zero
}

// Quiz is a generated collection of questions.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// CaseStudy is a clinical scenario with questions attached.
type CaseStudy struct {
	Title            string     `json:"title"`
	PatientHistory   string     `json:"patientHistory"`
	ClinicalFindings []string   `json:"clinicalFindings"`
	Questions        []Question `json:"questions"`
}

// Answer is a participant's response to a single question.
type Answer struct {
	OptionIndex int    `json:"optionIndex"`
	Text        string `json:"text,omitempty"`
}

// EvaluationResult summarizes the grading outcome for one submission.
type EvaluationResult struct {
	Correct  bool   `json:"isCorrect"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// FlowSummary aggregates per-question results at the end of a quiz or case flow.
type FlowSummary struct {
	Score        int           `json:"score"`
	CorrectCount int           `json:"correctCount"`
	Accuracy     float64       `json:"accuracy"` // percentage, 0..100
	TimeSpent    time.Duration `json:"timeSpent"`
}

// Document is an uploaded study material record. File bytes live in the store,
// not on this struct.
type Document struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
