package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()

	_, err := m.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(59 * time.Second) }
	_, err = m.Get(ctx, "k")
	assert.NoError(t, err, "entry expired before its TTL")

	m.now = func() time.Time { return base.Add(61 * time.Second) }
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss, "entry served past its TTL")

	assert.Equal(t, 0, m.Stats(ctx).Entries)
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }
	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))

	m.now = func() time.Time { return base.Add(1000 * time.Hour) }
	_, err := m.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestMemoryFIFOEviction(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.Set(ctx, k, []byte(k), time.Minute))
	}

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss, "oldest entry should have been evicted")
	for _, k := range []string{"b", "c", "d"} {
		_, err := m.Get(ctx, k)
		assert.NoError(t, err, "entry %q should have survived", k)
	}
	assert.Equal(t, 3, m.Stats(ctx).Entries)
}

func TestMemoryOverwriteDoesNotGrow(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, m.Set(ctx, "a", []byte("3"), time.Minute))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	_, err = m.Get(ctx, "b")
	assert.NoError(t, err, "overwriting a key must not evict its neighbor")
}

func TestMemoryDeleteThenReAddKeepsFIFOOrder(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Set(ctx, k, []byte(k), time.Minute))
	}
	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Set(ctx, "a", []byte("again"), time.Minute))
	require.NoError(t, m.Set(ctx, "d", []byte("d"), time.Minute))

	// "b" is now the oldest insertion; the re-added "a" must survive.
	_, err := m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss, "oldest live entry should have been evicted")
	got, err := m.Get(ctx, "a")
	require.NoError(t, err, "re-added entry evicted as if it were the oldest")
	assert.Equal(t, []byte("again"), got)
	assert.Equal(t, 3, m.Stats(ctx).Entries)
}

func TestMemoryExpiredEntryLeavesFIFOOrder(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }
	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))

	m.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err := m.Get(ctx, "a") // lazy expiry
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "a", []byte("3"), time.Minute))
	require.NoError(t, m.Set(ctx, "c", []byte("4"), time.Minute))

	// "b" is the oldest live insertion now, not the re-added "a".
	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryClear(t *testing.T) {
	m := NewMemory(8)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Clear(ctx))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Stats(ctx).Entries)
}

// brokenStore is a shared tier whose backend is down.
type brokenStore struct{}

var errBackendDown = errors.New("backend down")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}
func (brokenStore) Delete(context.Context, string) error { return errBackendDown }
func (brokenStore) Clear(context.Context) error          { return errBackendDown }
func (brokenStore) Stats(context.Context) Stats          { return Stats{Backend: "broken"} }
func (brokenStore) Close() error                         { return nil }

func TestTieredDegradesWhenSharedTierFails(t *testing.T) {
	tiered := NewTiered(brokenStore{}, NewMemory(8))
	ctx := context.Background()

	require.NoError(t, tiered.Set(ctx, "k", []byte("v"), time.Minute),
		"a broken shared tier must not fail writes")
	got, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, tiered.Delete(ctx, "k"))
	require.NoError(t, tiered.Clear(ctx))

	assert.Equal(t, "broken+memory", tiered.Stats(ctx).Backend)
}

func TestTieredPrefersSharedTier(t *testing.T) {
	shared := NewMemory(8)
	local := NewMemory(8)
	tiered := NewTiered(shared, local)
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, "k", []byte("shared"), time.Minute))
	require.NoError(t, local.Set(ctx, "k", []byte("local"), time.Minute))

	got, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got)
}

func TestTieredFallsBackOnSharedMiss(t *testing.T) {
	tiered := NewTiered(NewMemory(8), NewMemory(8))
	ctx := context.Background()

	require.NoError(t, tiered.local.Set(ctx, "k", []byte("local"), time.Minute))
	got, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), got)
}

func TestTieredWritesThroughBothTiers(t *testing.T) {
	shared := NewMemory(8)
	local := NewMemory(8)
	tiered := NewTiered(shared, local)
	ctx := context.Background()

	require.NoError(t, tiered.Set(ctx, "k", []byte("v"), time.Minute))
	for name, tier := range map[string]*Memory{"shared": shared, "local": local} {
		got, err := tier.Get(ctx, "k")
		require.NoError(t, err, "%s tier missing the write", name)
		assert.Equal(t, []byte("v"), got)
	}
}

func TestJSONHelpers(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	m := NewMemory(8)
	ctx := context.Background()

	_, ok := GetJSON[payload](ctx, m, "absent")
	assert.False(t, ok)

	SetJSON(ctx, m, "k", payload{Name: "x", Count: 3}, time.Minute)
	got, ok := GetJSON[payload](ctx, m, "k")
	require.True(t, ok)
	assert.Equal(t, payload{Name: "x", Count: 3}, got)

	// Corrupt bytes read as a miss, never as an error.
	require.NoError(t, m.Set(ctx, "bad", []byte("{not json"), time.Minute))
	_, ok = GetJSON[payload](ctx, m, "bad")
	assert.False(t, ok)
}
