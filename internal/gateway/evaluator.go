package gateway

import (
	"context"

	"dental-mentor-service/internal/domain"
)

// AnswerEvaluator grades submissions through the remote validate_answer
// endpoint. It satisfies the evaluation flow's Evaluator interface.
type AnswerEvaluator struct {
	client    *Client
	studentID string
}

func NewAnswerEvaluator(client *Client, studentID string) *AnswerEvaluator {
	return &AnswerEvaluator{client: client, studentID: studentID}
}

func (e *AnswerEvaluator) Evaluate(ctx context.Context, question domain.Question, answer domain.Answer) (domain.EvaluationResult, error) {
	text := answer.Text
	if text == "" && answer.OptionIndex >= 0 && answer.OptionIndex < len(question.Options) {
		text = question.Options[answer.OptionIndex]
	}
	return e.client.ValidateAnswer(ctx, question.ID, text, e.studentID), nil
}
