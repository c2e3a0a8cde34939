package engine

import "time"

// terminationGuard is the feedback-loop brake: Active -> Cooldown ->
// Active. While in cooldown all metadata queries and switches are
// suppressed, so a format change that destabilizes or restarts the
// observed player cannot immediately re-trigger the engine. The return
// to Active happens lazily on the next suppression check.
//
// Owned by the engine, mutated only under the engine mutex. One
// authoritative deadline, no auxiliary flags.
type terminationGuard struct {
	cooldown   time.Duration
	inCooldown bool
	deadline   time.Time
}

// enter transitions to Cooldown with a fresh deadline.
func (g *terminationGuard) enter(now time.Time) {
	g.inCooldown = true
	g.deadline = now.Add(g.cooldown)
}

// suppressed reports whether queries and switches are currently blocked,
// transitioning back to Active once the deadline has passed.
func (g *terminationGuard) suppressed(now time.Time) bool {
	if !g.inCooldown {
		return false
	}
	if now.Before(g.deadline) {
		return true
	}
	g.inCooldown = false
	return false
}
