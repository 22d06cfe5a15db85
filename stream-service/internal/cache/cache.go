// Package cache remembers object sizes so ranged reads skip the probe.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/JimmyPiedrahita/netflis/stream-service/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

// SizeCache maps object ids to their total size in bytes.
type SizeCache interface {
	Get(ctx context.Context, objectID string) (int64, error)
	Set(ctx context.Context, objectID string, size int64) error
	Close() error
}

// New builds the cache named by cfg.Driver.
func New(cfg config.CacheConfig) (SizeCache, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		return NewRedis(cfg.Redis, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Driver)
	}
}

// Memory is a bounded in-process cache whose entries expire after a TTL.
type Memory struct {
	lru *expirable.LRU[string, int64]
}

func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Memory{lru: expirable.NewLRU[string, int64](maxEntries, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, objectID string) (int64, error) {
	size, ok := m.lru.Get(objectID)
	if !ok {
		return 0, ErrCacheMiss
	}
	return size, nil
}

func (m *Memory) Set(_ context.Context, objectID string, size int64) error {
	m.lru.Add(objectID, size)
	return nil
}

func (m *Memory) len() int { return m.lru.Len() }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
