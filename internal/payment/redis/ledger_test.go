package redis_test

import (
	"context"
	"testing"
	"time"

	payredis "ms-camp-tickets/internal/payment/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*payredis.EventLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return payredis.NewEventLedger(client, time.Hour), mr
}

func TestLedgerMarksEventsOnce(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	seen, err := ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	first, err := ledger.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := ledger.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	seen, err = ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLedgerEntriesExpire(t *testing.T) {
	ledger, mr := newLedger(t)
	ctx := context.Background()

	_, err := ledger.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("stripe_event:evt_1"))

	mr.FastForward(2 * time.Hour)

	seen, err := ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLedgerReportsRedisErrors(t *testing.T) {
	ledger, mr := newLedger(t)
	mr.Close()

	_, err := ledger.IsProcessed(context.Background(), "evt_1")
	assert.Error(t, err)
}

func TestClaimIsExclusiveUntilReleased(t *testing.T) {
	ledger, mr := newLedger(t)
	ctx := context.Background()

	first, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, payredis.DefaultClaimTTL, mr.TTL("stripe_event_claim:evt_1"))

	second, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, ledger.Release(ctx, "evt_1"))

	again, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestMarkProcessedDropsClaim(t *testing.T) {
	ledger, mr := newLedger(t)
	ctx := context.Background()

	_, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)

	ok, err := ledger.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("stripe_event_claim:evt_1"))
	assert.True(t, mr.Exists("stripe_event:evt_1"))
}

func TestClaimExpires(t *testing.T) {
	ledger, mr := newLedger(t)
	ctx := context.Background()

	_, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)

	mr.FastForward(payredis.DefaultClaimTTL + time.Second)

	ok, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)
}
