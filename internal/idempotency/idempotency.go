// Package idempotency is the domain.IdempotencyPort adapter: a Redis-backed
// TTL ledger that lets the execution stage reject a duplicate order
// submission instead of double-filling a trade. Grounded on
// internal/market/redis_cache.go's RedisPriceCache — same client, same
// short-timeout-context-per-call idiom, adapted from a price cache (GET/SET
// a value) to a set-membership ledger (SET a marker). A Redis failure is
// returned to the caller as an error; the ledger does not turn it into a
// miss itself.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

const keyPrefix = "idem:"

var _ domain.IdempotencyPort = (*RedisLedger)(nil)

// RedisLedger implements domain.IdempotencyPort over a Redis client.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger builds a ledger over an existing Redis client.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) buildKey(key string) string {
	return keyPrefix + key
}

// CheckKey reports whether key has already been marked (i.e. whether the
// operation it guards has already been submitted).
func (l *RedisLedger) CheckKey(ctx context.Context, key string) (bool, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	metrics.RecordRedisOperation("get")
	_, err := l.client.Get(cacheCtx, l.buildKey(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idempotency check failed for key %q: %w", key, err)
	}
	return true, nil
}

// MarkKey records key as submitted for ttl. Overwrites any existing marker,
// refreshing its expiry. Redis SET is atomic per key, but CheckKey and
// MarkKey are separate round trips: two callers that both check before
// either marks will both find no key.
func (l *RedisLedger) MarkKey(ctx context.Context, key string, ttl time.Duration) error {
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	metrics.RecordRedisOperation("set")
	if err := l.client.Set(cacheCtx, l.buildKey(key), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark idempotency key %q: %w", key, err)
	}
	return nil
}

// CleanupExpired is a no-op: Redis expires keys on its own TTL clock. Kept
// to satisfy domain.IdempotencyPort for adapters (or tests) backed by a
// store without native expiry.
func (l *RedisLedger) CleanupExpired(ctx context.Context) error {
	log.Debug().Msg("idempotency cleanup is a no-op under redis TTL expiry")
	return nil
}
