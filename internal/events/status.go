// Package events provides a small status event bus that decouples the
// decision engine from its presentation consumers. Consecutive identical
// status updates are suppressed so downstream consumers are only notified
// on change.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// StatusUpdate is the engine's externally visible state at a point in time.
// It is a plain value so consumers can compare and copy it freely.
type StatusUpdate struct {
	Track        string `json:"track"`         // "Artist - Title" label, empty when idle
	TrackFormat  string `json:"track_format"`  // format label of the resolved track format
	Device       string `json:"device"`        // output device label
	DeviceFormat string `json:"device_format"` // format label of the device's current format
}

// BusStats contains counters for monitoring the status bus.
type BusStats struct {
	Published  uint64
	Suppressed uint64
}

// Bus fans status updates out to registered consumers. Publishing is
// last-write-wins: a consumer always receives the newest state, and an
// update identical to the previous one is dropped before dispatch.
type Bus struct {
	mu        sync.Mutex
	consumers []func(StatusUpdate)
	last      *StatusUpdate

	published  atomic.Uint64
	suppressed atomic.Uint64

	logger *slog.Logger
}

// NewBus creates a status bus. logger may be nil.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a consumer. Consumers are invoked synchronously in
// registration order, at most once per state change.
func (b *Bus) Subscribe(fn func(StatusUpdate)) {
	if b == nil || fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, fn)
}

// Publish dispatches the update to all consumers unless it is identical to
// the previously published update. Returns true if the update was
// dispatched, false if it was suppressed as a duplicate.
func (b *Bus) Publish(update StatusUpdate) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	if b.last != nil && *b.last == update {
		b.mu.Unlock()
		b.suppressed.Add(1)
		return false
	}
	b.last = &update
	consumers := make([]func(StatusUpdate), len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	b.published.Add(1)
	if b.logger != nil {
		b.logger.Debug("status update",
			"track", update.Track,
			"track_format", update.TrackFormat,
			"device", update.Device,
			"device_format", update.DeviceFormat)
	}
	for _, fn := range consumers {
		fn(update)
	}
	return true
}

// Last returns the most recently published update, or nil if none.
func (b *Bus) Last() *StatusUpdate {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return nil
	}
	cp := *b.last
	return &cp
}

// Stats returns bus counters.
func (b *Bus) Stats() BusStats {
	if b == nil {
		return BusStats{}
	}
	return BusStats{
		Published:  b.published.Load(),
		Suppressed: b.suppressed.Load(),
	}
}
