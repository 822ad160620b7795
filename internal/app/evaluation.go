package app

import (
	"context"
	"log"
	"sync"
	"time"

	"dental-mentor-service/internal/channel"
	"dental-mentor-service/internal/domain"
)

// QuestionState tracks the per-question evaluation lifecycle.
type QuestionState int

const (
	Unanswered QuestionState = iota
	Submitted
	Evaluated
)

// Evaluator grades a single answer. Implementations: the local option-index
// rule below and the remote grading call in the gateway package.
type Evaluator interface {
	Evaluate(ctx context.Context, question domain.Question, answer domain.Answer) (domain.EvaluationResult, error)
}

// LocalEvaluator grades by option index equality against the known answer.
type LocalEvaluator struct{}

func (LocalEvaluator) Evaluate(_ context.Context, question domain.Question, answer domain.Answer) (domain.EvaluationResult, error) {
	points := question.Points
	if points == 0 {
		points = 1
	}
	if answer.OptionIndex == question.CorrectIndex {
		feedback := question.Explanation
		if feedback == "" {
			feedback = "Correct!"
		}
		return domain.EvaluationResult{Correct: true, Score: points, Feedback: feedback}, nil
	}
	feedback := question.Explanation
	if feedback == "" {
		feedback = "Incorrect."
	}
	return domain.EvaluationResult{Correct: false, Score: 0, Feedback: feedback}, nil
}

// Flow orchestrates one participant's pass over a quiz or case study:
// question presentation, answer submission, grading, local score/XP update
// and score-delta propagation onto the channel.
type Flow struct {
	studentID string
	evaluator Evaluator
	sender    channel.Sender // nil disables propagation
	now       func() time.Time

	mu        sync.Mutex
	questions map[string]domain.Question
	order     []string
	states    map[string]QuestionState
	results   map[string]domain.EvaluationResult
	score     int
	xp        int
	startedAt time.Time
}

func NewFlow(studentID string, questions []domain.Question, evaluator Evaluator, sender channel.Sender) *Flow {
	return newFlowWithClock(studentID, questions, evaluator, sender, time.Now)
}

func newFlowWithClock(studentID string, questions []domain.Question, evaluator Evaluator, sender channel.Sender, now func() time.Time) *Flow {
	f := &Flow{
		studentID: studentID,
		evaluator: evaluator,
		sender:    sender,
		now:       now,
		questions: make(map[string]domain.Question, len(questions)),
		states:    make(map[string]QuestionState, len(questions)),
		results:   make(map[string]domain.EvaluationResult, len(questions)),
		startedAt: now(),
	}
	for _, q := range questions {
		f.questions[q.ID] = q
		f.order = append(f.order, q.ID)
		f.states[q.ID] = Unanswered
	}
	return f
}

// Questions returns the flow's questions in presentation order.
func (f *Flow) Questions() []domain.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Question, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.questions[id])
	}
	return out
}

// Submit drives one question through Submitted to Evaluated. Exactly one
// evaluation may be in flight per question; a second submission while the
// first is pending is rejected. A failing evaluator yields the fallback
// result, so the question never stays in Submitted after the call settles.
func (f *Flow) Submit(ctx context.Context, questionID string, answer domain.Answer) (domain.EvaluationResult, error) {
	f.mu.Lock()
	question, ok := f.questions[questionID]
	if !ok {
		f.mu.Unlock()
		return domain.EvaluationResult{}, domain.ErrQuestionNotFound
	}
	switch f.states[questionID] {
	case Submitted:
		f.mu.Unlock()
		return domain.EvaluationResult{}, domain.ErrEvaluationInFlight
	case Evaluated:
		f.mu.Unlock()
		return f.results[questionID], domain.ErrAlreadyEvaluated
	}
	f.states[questionID] = Submitted
	f.mu.Unlock()

	result, err := f.evaluator.Evaluate(ctx, question, answer)
	if err != nil {
		result = domain.EvaluationResult{Correct: false, Score: 0, Feedback: "error"}
	}

	f.mu.Lock()
	f.states[questionID] = Evaluated
	f.results[questionID] = result
	if result.Score > 0 {
		f.score += result.Score
		f.xp += result.Score
	}
	f.mu.Unlock()

	if result.Score > 0 && f.sender != nil {
		// The sender is normally an outbox, so a delta computed while the
		// channel is down is staged rather than lost. A raw channel can still
		// refuse the send; that loss must at least be visible.
		if err := channel.SendScoreUpdate(f.sender, f.studentID, result.Score, questionID); err != nil {
			log.Printf("score update for %s not delivered: %v", questionID, err)
		}
	}
	return result, nil
}

// State reports the lifecycle state of one question.
func (f *Flow) State(questionID string) QuestionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[questionID]
}

// Score returns the accumulated score so far.
func (f *Flow) Score() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.score
}

// XP returns the experience points earned so far.
func (f *Flow) XP() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.xp
}

// Summary folds per-question results into the final aggregate. Accuracy is a
// percentage over all questions in the flow, answered or not.
func (f *Flow) Summary() domain.FlowSummary {
	f.mu.Lock()
	defer f.mu.Unlock()

	correct := 0
	for _, result := range f.results {
		if result.Correct {
			correct++
		}
	}
	accuracy := 0.0
	if len(f.questions) > 0 {
		accuracy = float64(correct) / float64(len(f.questions)) * 100
	}
	return domain.FlowSummary{
		Score:        f.score,
		CorrectCount: correct,
		Accuracy:     accuracy,
		TimeSpent:    f.now().Sub(f.startedAt),
	}
}

// Badges returns the badges earned by the current aggregate.
func (f *Flow) Badges() []domain.Badge {
	return domain.EvaluateBadges(f.Summary())
}
