package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
)

// ErrNotFound is returned when no record exists for a field.
var ErrNotFound = errors.New("registry: field not found")

// Store is the key/value surface the registry needs: a single hash-like
// structure keyed by field name. Injecting it keeps the registry testable
// and avoids a process-global Redis handle.
type Store interface {
	Get(ctx context.Context, field string) (string, error)
	Set(ctx context.Context, field, value string) error
	Delete(ctx context.Context, field string) error
	All(ctx context.Context) (map[string]string, error)
	Ping(ctx context.Context) error
	Close() error
}

const agentsKey = "agents:registry"

// RedisStore backs the registry with one Redis hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store from Redis configuration.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return &RedisStore{client: rdb}
}

// NewRedisStoreFromClient wraps an existing client, used in tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, field string) (string, error) {
	val, err := s.client.HGet(ctx, agentsKey, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, field, value string) error {
	return s.client.HSet(ctx, agentsKey, field, value).Err()
}

func (s *RedisStore) Delete(ctx context.Context, field string) error {
	return s.client.HDel(ctx, agentsKey, field).Err()
}

func (s *RedisStore) All(ctx context.Context) (map[string]string, error) {
	return s.client.HGetAll(ctx, agentsKey).Result()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process Store for tests and single-node setups.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[field]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *MemoryStore) Set(_ context.Context, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[field] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, field)
	return nil
}

func (s *MemoryStore) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
