// Package cache holds the Redis and ClickHouse backed stores: run-once
// results, the execution audit log and the execution pub/sub feed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/genius-solver/internal/constants"
)

const runOncePrefix = constants.RedisKeyRunOncePrefix

// RunOnceStore persists run-once results in Redis so that every process of
// a deployment observes a single outcome per key. *RunOnceStore satisfies
// runonce.Store.
type RunOnceStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRunOnceStore(client redis.Cmdable, ttl time.Duration) (*RunOnceStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RunOnceStore{client: client, ttl: ttl}, nil
}

func (s *RunOnceStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, runOncePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load run-once result: %w", err)
	}
	return val, true, nil
}

// Save keeps the first result written for key and returns the stored value.
// When another writer got there first its value is returned instead of val.
func (s *RunOnceStore) Save(ctx context.Context, key string, val []byte) ([]byte, error) {
	ok, err := s.client.SetNX(ctx, runOncePrefix+key, val, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("save run-once result: %w", err)
	}
	if ok {
		return val, nil
	}
	stored, ok, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		// winner expired between SETNX and GET
		return val, nil
	}
	return stored, nil
}
