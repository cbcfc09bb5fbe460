package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestStore_SnapshotAndDrain(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddWebhookOutcome(ctx, "invoice.paid", "applied"))
	require.NoError(t, s.AddWebhookOutcome(ctx, "invoice.paid", "duplicate"))
	require.NoError(t, s.AddWebhookOutcome(ctx, "customer.subscription.updated", "applied"))
	require.NoError(t, s.AddWebhookOutcome(ctx, "", "rejected"))

	stats, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Count{{Name: "applied", Value: 2}, {Name: "duplicate", Value: 1}, {Name: "rejected", Value: 1}}, stats.Outcomes)
	assert.Equal(t, []Count{{Name: "customer.subscription.updated", Value: 1}, {Name: "invoice.paid", Value: 2}}, stats.EventTypes)

	drained, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, drained)
	assert.False(t, mr.Exists(webhookOutcomesKey))

	after, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, after.Outcomes)
}

func TestStore_DrainEmpty(t *testing.T) {
	s, _ := newStore(t)

	stats, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats.Outcomes)
	assert.Empty(t, stats.EventTypes)
}
