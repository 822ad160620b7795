package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"dental-mentor-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizSource produces quiz content for a topic and difficulty.
type QuizSource interface {
	GenerateQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error)
}

// QuizCache stores generated quizzes in Redis so multiple service instances
// share one generation per topic. Keys:
//
//	SET quiz:{topic}:{difficulty}:{n} {quiz JSON} EX ttl
type QuizCache struct {
	client *redis.Client
	source QuizSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuizCache(client *redis.Client, source QuizSource, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		source: source,
		ttl:    ttl,
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error) {
	key := c.key(topic, difficulty, numQuestions)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal([]byte(raw), &quiz); err == nil {
			return quiz, nil
		}
		// Corrupt cache entries fall through to regeneration.
		_ = c.client.Del(ctx, key).Err()
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			var quiz domain.Quiz
			if err := json.Unmarshal([]byte(raw), &quiz); err == nil {
				return quiz, nil
			}
		}

		quiz, err := c.source.GenerateQuiz(ctx, topic, difficulty, numQuestions)
		if err != nil {
			return domain.Quiz{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) key(topic, difficulty string, numQuestions int) string {
	return fmt.Sprintf("quiz:%s:%s:%d", strings.ToLower(topic), strings.ToLower(difficulty), numQuestions)
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
