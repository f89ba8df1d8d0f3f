package draftstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"almoheat/internal/config"
	"almoheat/internal/ledger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "almoheat:draft:"

// RedisStore keeps drafts in Redis so every API instance sees the same
// drafts. Each save refreshes the TTL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.DraftTTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisStore) key(id uuid.UUID) string {
	return s.keyPrefix + id.String()
}

func (s *RedisStore) claimKey(id uuid.UUID) string {
	return s.keyPrefix + "claim:" + id.String()
}

func (s *RedisStore) Save(ctx context.Context, draft *ledger.Draft) error {
	data, err := encode(draft)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(draft.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*ledger.Draft, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load draft %s: %w", id, err)
	}
	return decode(data)
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim uses SETNX so only one submitter across all instances wins.
func (s *RedisStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.claimKey(id), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim draft %s: %w", id, err)
	}
	return ok, nil
}

func (s *RedisStore) Claimed(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, s.claimKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check claim on draft %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Release(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.claimKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to release draft %s: %w", id, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
