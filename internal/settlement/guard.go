package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// guardStore is the slice of the Redis client the webhook guard needs.
type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(event, reference string) string
}

// WebhookGuard short-circuits gateway redeliveries before they reach the
// database. It is an optimization only: a lost or expired key falls through
// to the payment row compare-and-swap, which stays authoritative.
type WebhookGuard struct {
	store guardStore
	ttl   time.Duration
}

func NewWebhookGuard(store guardStore, ttl time.Duration) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("guard store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &WebhookGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark claims the (event, reference) pair. It reports true when a
// previous delivery already claimed it.
func (g *WebhookGuard) CheckAndMark(ctx context.Context, event, reference string) (bool, error) {
	if g == nil {
		return false, nil
	}
	if event == "" || reference == "" {
		return false, errors.New("event and reference are required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookKey(event, reference), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook guard key: %w", err)
	}
	return !set, nil
}

// Release drops the claim so a redelivery is processed again.
func (g *WebhookGuard) Release(ctx context.Context, event, reference string) error {
	if g == nil {
		return nil
	}
	if event == "" || reference == "" {
		return errors.New("event and reference are required")
	}
	return g.store.Del(ctx, g.store.WebhookKey(event, reference))
}
