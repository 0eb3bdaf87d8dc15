// Package dedupe provides a fast, shared "seen this delivery" check in front
// of the webhook_deliveries table. Redis is optional: without it the Postgres
// claim made inside the trip transaction is the only guard.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a claim blocks redelivery of the same event.
const DefaultTTL = 72 * time.Hour

const keyPrefix = "nemt:webhook:delivery:"

// Guard claims (integration, event) pairs.
type Guard interface {
	// Claim returns false when the pair is already claimed.
	Claim(ctx context.Context, integrationID uuid.UUID, eventID string) (bool, error)
	// Release drops a claim so a failed delivery can be retried.
	Release(ctx context.Context, integrationID uuid.UUID, eventID string) error
}

// NopGuard claims everything.
type NopGuard struct{}

func (NopGuard) Claim(context.Context, uuid.UUID, string) (bool, error) { return true, nil }
func (NopGuard) Release(context.Context, uuid.UUID, string) error       { return nil }

// RedisGuard claims with SET NX and a TTL.
type RedisGuard struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisGuard wraps rdb. A non-positive ttl uses DefaultTTL.
func NewRedisGuard(rdb goredis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

// Open parses a redis:// URL and pings the server.
func Open(ctx context.Context, url string) (goredis.UniversalClient, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("dedupe.Open: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("dedupe.Open: ping: %w", err)
	}
	return rdb, nil
}

// Key is the Redis key guarding one delivery.
func Key(integrationID uuid.UUID, eventID string) string {
	return keyPrefix + integrationID.String() + ":" + eventID
}

func (g *RedisGuard) Claim(ctx context.Context, integrationID uuid.UUID, eventID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, Key(integrationID, eventID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe.RedisGuard.Claim: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, integrationID uuid.UUID, eventID string) error {
	err := g.rdb.Del(ctx, Key(integrationID, eventID)).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("dedupe.RedisGuard.Release: %w", err)
	}
	return nil
}
