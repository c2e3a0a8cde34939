package player

import (
	"context"
	"sync"
	"time"
)

// ScriptedProvider is a MetadataProvider for tests. The current track is
// set by the test; an optional delay simulates a slow or hung player.
type ScriptedProvider struct {
	mu      sync.Mutex
	track   *Track
	err     error
	delay   time.Duration
	queries int
}

// NewScriptedProvider returns a provider reporting nothing playing.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// SetTrack sets the track returned by subsequent queries. nil means idle.
func (p *ScriptedProvider) SetTrack(t *Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = t
}

// SetError makes subsequent queries fail with err.
func (p *ScriptedProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetDelay makes subsequent queries block for d before answering.
func (p *ScriptedProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// Queries returns how many times CurrentTrack has been called.
func (p *ScriptedProvider) Queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

func (p *ScriptedProvider) CurrentTrack(ctx context.Context) (*Track, error) {
	p.mu.Lock()
	p.queries++
	track, err, delay := p.track, p.err, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, nil
	}
	cp := *track
	return &cp, nil
}
