package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"dental-mentor-service/internal/domain"
)

func TestQuizCacheCaches(t *testing.T) {
	source := &countingSource{
		QuizSource: NewStaticQuizSource(map[string]domain.Quiz{
			"Endodontics": sampleQuiz(),
		}),
	}
	cache := NewQuizCache(source, time.Minute)

	if _, err := cache.GetQuiz(context.Background(), "Endodontics", "medium", 2); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}

	if _, err := cache.GetQuiz(context.Background(), "Endodontics", "medium", 2); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls)
	}
}

func TestQuizCacheKeysByDifficulty(t *testing.T) {
	source := &countingSource{
		QuizSource: NewStaticQuizSource(map[string]domain.Quiz{
			"Endodontics": sampleQuiz(),
		}),
	}
	cache := NewQuizCache(source, time.Minute)

	_, _ = cache.GetQuiz(context.Background(), "Endodontics", "easy", 2)
	_, _ = cache.GetQuiz(context.Background(), "Endodontics", "hard", 2)
	if source.calls != 2 {
		t.Fatalf("expected separate cache entries per difficulty, calls=%d", source.calls)
	}
}

func TestQuizCacheConcurrentFetches(t *testing.T) {
	cache := NewQuizCache(NewStaticQuizSource(map[string]domain.Quiz{
		"Endodontics": sampleQuiz(),
	}), time.Minute)

	var wg sync.WaitGroup
	for _, difficulty := range []string{"easy", "medium", "hard", "expert"} {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(d string) {
				defer wg.Done()
				if _, err := cache.GetQuiz(context.Background(), "Endodontics", d, 2); err != nil {
					t.Errorf("get quiz %s: %v", d, err)
				}
			}(difficulty)
		}
	}
	wg.Wait()
}

func TestTTLJitterStaysBounded(t *testing.T) {
	cache := NewQuizCache(NewStaticQuizSource(nil), time.Minute)
	for i := 0; i < 100; i++ {
		d := cache.ttlWithJitter()
		if d < time.Minute || d > time.Minute+6*time.Second {
			t.Fatalf("jitter out of bounds: %v", d)
		}
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
			{
				ID:           "q2",
				Prompt:       "Which file is used for canal shaping?",
				Options:      []string{"K-file", "Scaler", "Excavator"},
				CorrectIndex: 0,
				Points:       10,
			},
		},
	}
}
