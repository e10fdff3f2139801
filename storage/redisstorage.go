package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"1CLockAnalyzer/config"
)

// RedisStore держит смещения одним JSON-значением в Redis.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg *config.RedisConfig, key string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: rdb, key: key}
}

func (r *RedisStore) Load() (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	processed := make(map[string]int64)
	bs, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return processed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	if err := json.Unmarshal(bs, &processed); err != nil {
		return nil, err
	}
	return processed, nil
}

func (r *RedisStore) Save(data map[string]int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bs, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, bs, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
