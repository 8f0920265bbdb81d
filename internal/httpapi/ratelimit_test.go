package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) Now() time.Time { return f.t }

func TestIPLimiterBurstAndRefill(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	l := newIPLimiter(1, 2, 0, nil, clock.Now)

	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.2"), "clients have separate buckets")

	clock.t = clock.t.Add(time.Second)
	require.True(t, l.Allow("10.0.0.1"))
}

func TestIPLimiterEvictsLeastRecent(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	l := newIPLimiter(1, 1, 2, nil, clock.Now)

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("c"))
	require.Equal(t, 2, l.Len())

	// b was evicted, so it starts with a fresh bucket.
	require.True(t, l.Allow("b"))
}

func TestIPLimiterCleanup(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	l := newIPLimiter(1, 1, 0, nil, clock.Now)

	l.Allow("old")
	clock.t = clock.t.Add(20 * time.Minute)
	l.Allow("new")
	clock.t = clock.t.Add(15 * time.Minute)

	require.Equal(t, 1, l.Cleanup(30*time.Minute))
	require.Equal(t, 1, l.Len())
	l.Stop()
	l.Stop()
}
