package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dental-mentor-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore serves pre-authored quizzes from Postgres JSONB. It implements
// the same QuizSource contract as the generation gateway, so curated content
// can stand in for (or front-run) generated content.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) GenerateQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM quizzes WHERE lower(topic)=lower($1) AND lower(difficulty)=lower($2)`,
		topic, difficulty).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if numQuestions > 0 && numQuestions < len(quiz.Questions) {
		quiz.Questions = quiz.Questions[:numQuestions]
	}
	return quiz, nil
}
