package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
)

// Redis shares sizes between proxy replicas.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(cfg config.RedisConfig, ttl time.Duration) (*Redis, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis cache configured but address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, keyPrefix: cfg.KeyPrefix, ttl: ttl}, nil
}

func (r *Redis) key(objectID string) string {
	return r.keyPrefix + objectID
}

func (r *Redis) Get(ctx context.Context, objectID string) (int64, error) {
	size, err := r.client.Get(ctx, r.key(objectID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("failed to read size from redis: %w", err)
	}
	return size, nil
}

func (r *Redis) Set(ctx context.Context, objectID string, size int64) error {
	if err := r.client.Set(ctx, r.key(objectID), size, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write size to redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ SizeCache = (*Redis)(nil)
