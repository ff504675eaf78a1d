package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil without error when REDIS_URL is unset; the answer
// cache is an optional layer and the service runs fine without it.
func ConnectRedis() (*redis.Client, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}

	fmt.Println("Connected to Redis!")
	return client, nil
}

type RedisAnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAnswerCache(client *redis.Client) *RedisAnswerCache {
	if client == nil {
		panic("client cannot be nil for RedisAnswerCache")
	}
	return &RedisAnswerCache{client: client, ttl: 60 * time.Second}
}

// Answers are short-lived on purpose: the underlying metrics keep moving and
// the oracle is allowed to regenerate a different query for the same question.
func (rc *RedisAnswerCache) Get(ctx context.Context, question string) (string, error) {
	answer, err := rc.client.Get(ctx, answerKey(question)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read cached answer: %w", err)
	}
	return answer, nil
}

func (rc *RedisAnswerCache) Set(ctx context.Context, question string, answer string) error {
	if err := rc.client.Set(ctx, answerKey(question), answer, rc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache answer: %w", err)
	}
	return nil
}

func answerKey(question string) string {
	return "ask:" + strings.ToLower(strings.TrimSpace(question))
}
