package redis

import (
	"context"
	"testing"
	"time"

	"dental-mentor-service/internal/domain"
	"dental-mentor-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	source := &countingSource{
		QuizSource: memory.NewStaticQuizSource(map[string]domain.Quiz{
			"Endodontics": sampleQuiz(),
		}),
	}
	cache := NewQuizCache(client, source, time.Minute)

	quiz, err := cache.GetQuiz(context.Background(), "Endodontics", "medium", 1)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(quiz.Questions))
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if !mr.Exists("quiz:endodontics:medium:1") {
		t.Fatalf("expected quiz cached in redis")
	}

	// Second call should hit cache, source not incremented.
	if _, err := cache.GetQuiz(context.Background(), "Endodontics", "medium", 1); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
}

func TestQuizCacheRecoversFromCorruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	_ = mr.Set("quiz:endodontics:medium:1", "{not json")

	source := &countingSource{
		QuizSource: memory.NewStaticQuizSource(map[string]domain.Quiz{
			"Endodontics": sampleQuiz(),
		}),
	}
	cache := NewQuizCache(client, source, time.Minute)

	if _, err := cache.GetQuiz(context.Background(), "Endodontics", "medium", 1); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected regeneration after corrupt cache entry, calls=%d", source.calls)
	}
}

type countingSource struct {
	QuizSource
	calls int
}

func (s *countingSource) GenerateQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error) {
	s.calls++
	return s.QuizSource.GenerateQuiz(ctx, topic, difficulty, numQuestions)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "endo-medium",
		Title: "Endodontics Basics",
		Questions: []domain.Question{
			{
				ID:           "q1",
				Prompt:       "Which tissue is removed during a root canal?",
				Options:      []string{"Enamel", "Pulp", "Cementum"},
				CorrectIndex: 1,
				Points:       10,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
