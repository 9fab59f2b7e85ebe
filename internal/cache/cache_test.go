package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type recordingObserver struct {
	hits, misses, expired, sweeps int
}

func (o *recordingObserver) CacheHit(string) { o.hits++ }
func (o *recordingObserver) CacheMiss(_ string, expired bool) {
	o.misses++
	if expired {
		o.expired++
	}
}
func (o *recordingObserver) CacheSweep(int, int) { o.sweeps++ }

func TestGetAfterSetReturnsValue(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, time.Minute, WithClock(clock.Now))

	c.SetWithTTL("k", "v", time.Second)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetAfterExpiryIsAbsentTwice(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, time.Minute, WithClock(clock.Now))

	c.SetWithTTL("k", "v", time.Second)
	clock.Advance(2 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestEntryExpiresExactlyAtDeadline(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, time.Minute, WithClock(clock.Now))

	c.SetWithTTL("k", 1, time.Second)
	clock.Advance(time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok, "now == expiresAt must be treated as expired")
}

func TestSetWithZeroTTLExpiresImmediately(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, time.Hour, WithClock(clock.Now))

	c.SetWithTTL("k", "v", 0)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.SetWithTTL("k", "v", -time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSetReplacesValueAndExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, time.Hour, WithClock(clock.Now))

	c.SetWithTTL("k", "old", time.Second)
	clock.Advance(500 * time.Millisecond)
	c.SetWithTTL("k", "new", 10*time.Second)
	clock.Advance(2 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestNoResurrectionAfterEviction(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, time.Hour, WithClock(clock.Now))

	c.SetWithTTL("k", "stale", time.Second)
	clock.Advance(2 * time.Second)
	_, ok := c.Get("k")
	require.False(t, ok)

	c.SetWithTTL("k", "fresh", time.Second)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fresh", got)
}

func TestSetUsesDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(10*time.Second, time.Hour, WithClock(clock.Now))

	c.Set("k", "v")
	clock.Advance(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCleanupIsGatedBySweepInterval(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, 5*time.Minute, WithClock(clock.Now))

	c.SetWithTTL("short", 1, time.Minute)
	c.SetWithTTL("long", 2, time.Hour)

	clock.Advance(2 * time.Minute)
	removed, swept := c.Cleanup()
	assert.False(t, swept, "interval has not elapsed yet")
	assert.Equal(t, 0, removed)
	assert.Equal(t, 2, c.Len())

	clock.Advance(4 * time.Minute)
	removed, swept = c.Cleanup()
	assert.True(t, swept)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	// An entry expiring between two close calls is left for the next sweep.
	c.SetWithTTL("blink", 3, time.Second)
	clock.Advance(2 * time.Second)
	removed, swept = c.Cleanup()
	assert.False(t, swept)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 2, c.Len())
}

func TestCleanupResetsClockEvenWhenNothingExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, time.Minute, WithClock(clock.Now))
	c.Set("k", "v")

	clock.Advance(2 * time.Minute)
	removed, swept := c.Cleanup()
	require.True(t, swept)
	assert.Equal(t, 0, removed)

	clock.Advance(30 * time.Second)
	_, swept = c.Cleanup()
	assert.False(t, swept)
}

func TestCleanupAtExactIntervalIsNoop(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Second, time.Minute, WithClock(clock.Now))
	c.Set("k", "v")

	clock.Advance(time.Minute)
	_, swept := c.Cleanup()
	assert.False(t, swept, "sweep requires strictly more than the interval")
}

func TestClearKeepsSweepClock(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Second, time.Minute, WithClock(clock.Now))
	c.Set("a", 1)
	c.Set("b", 2)

	clock.Advance(30 * time.Second)
	c.Clear()
	assert.Equal(t, 0, c.Len())

	clock.Advance(31 * time.Second)
	_, swept := c.Cleanup()
	assert.True(t, swept, "Clear must not reset the sweep clock")
}

func TestObserverSeesHitsMissesAndSweeps(t *testing.T) {
	clock := newFakeClock()
	obs := &recordingObserver{}
	c := New(time.Second, time.Second, WithClock(clock.Now), WithObserver(obs))

	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")
	clock.Advance(2 * time.Second)
	c.Get("k")
	c.Cleanup()

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, 1, obs.expired)
	assert.Equal(t, 1, obs.sweeps)
}

func TestGetAs(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Set("n", 42)

	n, ok := GetAs[int](c, "n")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = GetAs[string](c, "n")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "boards:Sonar:epics", Key("boards", "Sonar", "epics"))
	assert.Equal(t, "search", Key("search"))
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, time.Nanosecond)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := Key("k", string(rune('a'+i)))
				c.Set(key, j)
				c.Get(key)
				c.Cleanup()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}
