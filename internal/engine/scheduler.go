package engine

import "time"

// pollScheduler tracks the adaptive evaluation interval: fast while a
// transition is resolving, slow during steady playback. An accepted hint
// can additionally force the fast interval for a bounded window.
//
// Owned by the engine, mutated only under the engine mutex.
type pollScheduler struct {
	transition time.Duration // fast interval
	steady     time.Duration // slow interval

	current   time.Duration
	fastUntil time.Time
}

func (s *pollScheduler) setFast() {
	s.current = s.transition
}

func (s *pollScheduler) setSteady() {
	s.current = s.steady
}

// nudge forces the fast interval until now+window, without touching the
// base interval. Used when hints arrive outside a transition.
func (s *pollScheduler) nudge(now time.Time, window time.Duration) {
	until := now.Add(window)
	if until.After(s.fastUntil) {
		s.fastUntil = until
	}
}

// interval returns the effective interval at the given time.
func (s *pollScheduler) interval(now time.Time) time.Duration {
	if now.Before(s.fastUntil) {
		return s.transition
	}
	return s.current
}
