package backoff

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (Gate, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewGate(NewRedisStore(client)), mr
}

func TestCooldownLifecycle(t *testing.T) {
	gate, mr := setupRedis(t)
	ctx := context.Background()

	require.False(t, gate.OnCooldown(ctx, "iceland-bonus-card"))

	gate.Activate(ctx, "iceland-bonus-card", time.Minute)
	require.True(t, gate.OnCooldown(ctx, "iceland-bonus-card"))

	// merchant-scoped, not request-scoped: other merchants are unaffected
	require.False(t, gate.OnCooldown(ctx, "squaremeal"))

	// only expiry clears the cooldown
	mr.FastForward(time.Minute + time.Second)
	require.False(t, gate.OnCooldown(ctx, "iceland-bonus-card"))
}

func TestCooldownSharedAcrossGates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	a := NewGate(NewRedisStore(client))
	b := NewGate(NewRedisStore(client))

	a.Activate(ctx, "wasabi-club", time.Minute)
	require.True(t, b.OnCooldown(ctx, "wasabi-club"))
}

type brokenStore struct{}

func (brokenStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func (brokenStore) SetWithExpiry(ctx context.Context, key string, d time.Duration) error {
	return fmt.Errorf("connection refused")
}

func TestFailsOpenWhenStoreUnreachable(t *testing.T) {
	gate := NewGate(brokenStore{})
	ctx := context.Background()

	require.False(t, gate.OnCooldown(ctx, "iceland-bonus-card"))
	// must not panic or surface the error
	gate.Activate(ctx, "iceland-bonus-card", time.Minute)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetWithExpiry(ctx, "backoff:m", 10*time.Millisecond))
	active, err := store.Exists(ctx, "backoff:m")
	require.NoError(t, err)
	require.True(t, active)

	time.Sleep(20 * time.Millisecond)
	active, err = store.Exists(ctx, "backoff:m")
	require.NoError(t, err)
	require.False(t, active)
}
