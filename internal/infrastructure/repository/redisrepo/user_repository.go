// Package redisrepo provides Redis-backed user storage.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

const (
	defaultKey = "dwidmapper:users"
)

// UserRepository stores the user directory as a Redis list of JSON records.
// List order is directory order.
type UserRepository struct {
	client *redis.Client
	key    string
}

// UserRepositoryConfig contains configuration for UserRepository.
type UserRepositoryConfig struct {
	Client *redis.Client
	Key    string
}

// NewUserRepository creates a new Redis-based user repository.
func NewUserRepository(cfg UserRepositoryConfig) *UserRepository {
	key := cfg.Key
	if key == "" {
		key = defaultKey
	}

	return &UserRepository{
		client: cfg.Client,
		key:    key,
	}
}

// Name implements dataset.Source.
func (r *UserRepository) Name() string {
	return "redis:" + r.key
}

// Load implements dataset.Source.
func (r *UserRepository) Load(ctx context.Context) ([]user.Record, error) {
	values, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	records := make([]user.Record, 0, len(values))
	for i, v := range values {
		rec, decErr := user.DecodeRecordJSON([]byte(v), "")
		if decErr != nil {
			return nil, fmt.Errorf("user at index %d: %w", i, decErr)
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReplaceAll atomically replaces the list with records.
func (r *UserRepository) ReplaceAll(ctx context.Context, records []user.Record) error {
	if len(records) == 0 {
		return errs.ErrEmptyDirectory
	}

	values := make([]any, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode user %q: %w", rec.Name(), err)
		}
		values = append(values, string(data))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.RPush(ctx, r.key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store users: %w", err)
	}

	return nil
}

// Count returns the number of stored users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return int(n), nil
}
