package memory

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"dental-mentor-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizSource produces quiz content for a topic and difficulty (generation
// gateway, Postgres, or a static fixture).
type QuizSource interface {
	GenerateQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error)
}

// QuizCache caches generated quizzes with TTL so repeated requests for the
// same topic do not hammer the generation endpoint.
type QuizCache struct {
	source QuizSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(source QuizSource, ttl time.Duration) *QuizCache {
	return &QuizCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedQuiz),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error) {
	key := cacheKey(topic, difficulty, numQuestions)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.source.GenerateQuiz(ctx, topic, difficulty, numQuestions)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.cache[key] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func cacheKey(topic, difficulty string, numQuestions int) string {
	return fmt.Sprintf("%s:%s:%d", strings.ToLower(topic), strings.ToLower(difficulty), numQuestions)
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations; the global source is
	// safe under concurrent singleflight callbacks
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

// StaticQuizSource serves fixed quizzes keyed by topic (useful for tests/demos).
type StaticQuizSource struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizSource(quizzes map[string]domain.Quiz) *StaticQuizSource {
	return &StaticQuizSource{quizzes: quizzes}
}

func (s *StaticQuizSource) GenerateQuiz(_ context.Context, topic, _ string, numQuestions int) (domain.Quiz, error) {
	quiz, ok := s.quizzes[topic]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if numQuestions > 0 && numQuestions < len(quiz.Questions) {
		quiz.Questions = quiz.Questions[:numQuestions]
	}
	return quiz, nil
}
