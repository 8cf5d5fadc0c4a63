package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConsumedTokenRepository records single-use token ids. Consume reports false
// when jti was already consumed and has not yet expired.
type ConsumedTokenRepository interface {
	Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

const consumedTokenKeyPrefix = "bus-ticket:reset:consumed:"

type redisConsumedTokenRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisConsumedTokenRepository keeps consumed ids as keys that expire with
// the token itself
func NewRedisConsumedTokenRepository(client redis.Cmdable) ConsumedTokenRepository {
	return &redisConsumedTokenRepository{client: client, now: time.Now}
}

func (r *redisConsumedTokenRepository) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, consumedTokenKeyPrefix+jti, r.now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record consumed token: %w", err)
	}
	return ok, nil
}

// MemoryConsumedTokenRepository is the process-local ledger used when no
// redis is configured. It only protects a single instance.
type MemoryConsumedTokenRepository struct {
	mu       sync.Mutex
	consumed map[string]time.Time
	now      func() time.Time
}

func NewMemoryConsumedTokenRepository() *MemoryConsumedTokenRepository {
	return &MemoryConsumedTokenRepository{consumed: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryConsumedTokenRepository) Consume(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, exp := range r.consumed {
		if !exp.After(now) {
			delete(r.consumed, id)
		}
	}
	if _, used := r.consumed[jti]; used {
		return false, nil
	}
	r.consumed[jti] = expiresAt
	return true, nil
}
