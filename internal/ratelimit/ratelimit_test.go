package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKeyedRateLimiter_Burst(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	krl := newLimiter(1, 3, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, krl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, krl.Allow("10.0.0.1"))

	// Other keys have their own bucket.
	assert.True(t, krl.Allow("10.0.0.2"))

	clock.Advance(time.Second)
	assert.True(t, krl.Allow("10.0.0.1"))
	assert.False(t, krl.Allow("10.0.0.1"))
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	krl := newLimiter(1, 1, time.Minute, clock.Now)

	krl.Allow("a")
	clock.Advance(30 * time.Second)
	krl.Allow("b")
	assert.Equal(t, 2, krl.Len())

	clock.Advance(45 * time.Second)
	krl.evictIdle()
	assert.Equal(t, 1, krl.Len())

	clock.Advance(time.Minute)
	krl.evictIdle()
	assert.Zero(t, krl.Len())
}

func TestKeyedRateLimiter_Stop(t *testing.T) {
	t.Parallel()

	krl := New(5, 10)
	krl.Stop()
	krl.Stop()
	assert.True(t, krl.Allow("still-usable"))
}
