package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTerminationGuard(t *testing.T) {
	t.Parallel()

	g := terminationGuard{cooldown: 8 * time.Second}
	now := time.Now()

	assert.False(t, g.suppressed(now), "fresh guard is active")

	g.enter(now)
	assert.True(t, g.suppressed(now))
	assert.True(t, g.suppressed(now.Add(7*time.Second)))

	// Lazy return to active once the deadline passes.
	assert.False(t, g.suppressed(now.Add(8*time.Second)))
	assert.False(t, g.inCooldown)
	assert.False(t, g.suppressed(now.Add(9*time.Second)))

	// Re-entering arms a fresh deadline.
	later := now.Add(time.Minute)
	g.enter(later)
	assert.True(t, g.suppressed(later.Add(7*time.Second)))
}

func TestPollScheduler(t *testing.T) {
	t.Parallel()

	s := pollScheduler{transition: 500 * time.Millisecond, steady: 4 * time.Second}
	now := time.Now()

	s.setSteady()
	assert.Equal(t, 4*time.Second, s.interval(now))

	s.setFast()
	assert.Equal(t, 500*time.Millisecond, s.interval(now))

	// A hint window forces the fast interval over the steady base.
	s.setSteady()
	s.nudge(now, 5*time.Second)
	assert.Equal(t, 500*time.Millisecond, s.interval(now.Add(4*time.Second)))
	assert.Equal(t, 4*time.Second, s.interval(now.Add(6*time.Second)))

	// A shorter nudge never shrinks an existing window.
	s.nudge(now, time.Second)
	assert.Equal(t, 500*time.Millisecond, s.interval(now.Add(4*time.Second)))
}
