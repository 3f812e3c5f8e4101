package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists encrypted values in Redis under a key prefix
type RedisStore struct {
	client *redis.Client
	cipher *Cipher
	prefix string
}

func NewRedisStore(client *redis.Client, cipher *Cipher) *RedisStore {
	return &RedisStore{client: client, cipher: cipher, prefix: "kv:"}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	return s.cipher.Open(key, sealed)
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.cipher.Seal(key, value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return s.client.Set(ctx, s.prefix+key, sealed, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
