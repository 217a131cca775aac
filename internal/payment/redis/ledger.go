package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix   = "stripe_event:"
	claimPrefix = "stripe_event_claim:"

	// DefaultClaimTTL bounds how long a crashed delivery can hold an event.
	DefaultClaimTTL = 5 * time.Minute
)

// EventLedger remembers webhook events that were fully processed, so a
// Stripe redelivery is acknowledged without side effects. A delivery claims
// its event while it is processed so concurrent copies are turned away.
type EventLedger struct {
	Client   *redis.Client
	TTL      time.Duration
	ClaimTTL time.Duration
}

func NewEventLedger(client *redis.Client, ttl time.Duration) *EventLedger {
	return &EventLedger{Client: client, TTL: ttl, ClaimTTL: DefaultClaimTTL}
}

func (l *EventLedger) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := l.Client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Claim takes the in-flight lock for an event. It reports false when
// another delivery holds it.
func (l *EventLedger) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, claimPrefix+eventID, time.Now().UTC().Format(time.RFC3339), l.ClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", claimPrefix+eventID, err)
	}
	return ok, nil
}

// Release drops the in-flight lock so a later redelivery can retry.
func (l *EventLedger) Release(ctx context.Context, eventID string) error {
	if err := l.Client.Del(ctx, claimPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", claimPrefix+eventID, err)
	}
	return nil
}

// MarkProcessed records the event and drops its claim. It reports false
// when the event was already recorded by another delivery.
func (l *EventLedger) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, keyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", eventID, err)
	}
	if err := l.Release(ctx, eventID); err != nil {
		return ok, err
	}
	return ok, nil
}
