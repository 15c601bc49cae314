package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps checkpoints in redis. The snapshot is a single
// value under a stable key, which is exactly redis's shape; hand history
// still goes to a SQL backend.
type RedisSnapshotStore struct {
	client *redis.Client
}

func NewRedisSnapshotStoreFromEnv() (*RedisSnapshotStore, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}
	return NewRedisSnapshotStore(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
}

func NewRedisSnapshotStore(opts *redis.Options) (*RedisSnapshotStore, error) {
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisSnapshotStore{client: client}, nil
}

func (s *RedisSnapshotStore) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisSnapshotStore) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
