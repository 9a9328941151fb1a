package webhooks

import (
	"context"
	"time"
)

const defaultGuardTTL = 24 * time.Hour

// guardStore is the slice of the redis client the guard needs.
type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard is a fast-path dedup for webhook deliveries keyed by provider event
// id. It is advisory only: the conditional UPDATE in storage is the real
// idempotency authority, the guard just spares replays a database round trip.
type Guard struct {
	redis guardStore
	ttl   time.Duration
}

func NewGuard(redis guardStore, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &Guard{redis: redis, ttl: ttl}
}

// CheckAndMark claims the delivery. Returns true when this is the first time
// the event id was seen. Redis being down fails open: the delivery proceeds
// and storage-level idempotency absorbs any duplicate.
func (g *Guard) CheckAndMark(ctx context.Context, provider, eventID string) bool {
	if g == nil || g.redis == nil || eventID == "" {
		return true
	}
	key := g.redis.IdempotencyKey("webhook:"+provider, eventID)
	fresh, err := g.redis.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return true
	}
	return fresh
}

// Release drops the claim so a failed handler can be retried by the provider.
func (g *Guard) Release(ctx context.Context, provider, eventID string) {
	if g == nil || g.redis == nil || eventID == "" {
		return
	}
	key := g.redis.IdempotencyKey("webhook:"+provider, eventID)
	_ = g.redis.Del(ctx, key)
}
