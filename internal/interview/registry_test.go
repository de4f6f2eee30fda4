package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistrySweepDropsIdleSessions(t *testing.T) {
	clock := &manualClock{now: fixedStart}
	reg := NewRegistry(time.Hour, clock.Now)

	old := newSession("old", Applicant{}, (&fakeAssistant{}).NewConversation(), clock.Now())
	reg.put(old)
	clock.Advance(45 * time.Minute)
	fresh := newSession("fresh", Applicant{}, (&fakeAssistant{}).NewConversation(), clock.Now())
	reg.put(fresh)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())

	_, err := reg.Get("old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = reg.Get("fresh")
	require.NoError(t, err)
}

func TestRegistryTouchExtendsLifetime(t *testing.T) {
	clock := &manualClock{now: fixedStart}
	reg := NewRegistry(time.Hour, clock.Now)
	s := newSession("s", Applicant{}, (&fakeAssistant{}).NewConversation(), clock.Now())
	reg.put(s)

	clock.Advance(50 * time.Minute)
	s.touch(clock.Now())
	clock.Advance(50 * time.Minute)
	assert.Equal(t, 0, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryKeepsSessionTouchedDuringSweep(t *testing.T) {
	clock := &manualClock{now: fixedStart}
	reg := NewRegistry(time.Hour, clock.Now)
	s := newSession("s", Applicant{}, (&fakeAssistant{}).NewConversation(), clock.Now())
	reg.put(s)
	gone := newSession("gone", Applicant{}, (&fakeAssistant{}).NewConversation(), clock.Now())
	reg.put(gone)

	clock.Advance(2 * time.Hour)
	cutoff := clock.Now().Add(-time.Hour)
	candidates := reg.idle(cutoff)
	require.ElementsMatch(t, []string{"s", "gone"}, candidates)

	s.touch(clock.Now())
	assert.Equal(t, 1, reg.drop(candidates, cutoff))

	_, err := reg.Get("s")
	require.NoError(t, err)
	_, err = reg.Get("gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryZeroTTLNeverExpires(t *testing.T) {
	reg := NewRegistry(0, nil)
	reg.put(newSession("s", Applicant{}, (&fakeAssistant{}).NewConversation(), time.Unix(0, 0)))
	assert.Equal(t, 0, reg.Sweep())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg.Run(ctx, time.Millisecond)
}

func TestRegistryRunStopsOnCancel(t *testing.T) {
	reg := NewRegistry(time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
