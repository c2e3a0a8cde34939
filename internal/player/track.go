// Package player provides the media player metadata bridge: current track
// queries and the track model the decision engine consumes.
package player

import (
	"fmt"
	"strings"
)

// Track is one metadata query result. It is created fresh per query,
// never mutated, and discarded after one decision cycle.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`

	// Location is the file path or URL of the track's source. Some
	// players report stream URLs here, so a non-empty location does not
	// imply a local file.
	Location string `json:"location,omitempty"`

	// SampleRate is the player-reported embedded rate in Hz, 0 when the
	// player did not report one. Trusted highest after local-file metadata.
	SampleRate float64 `json:"sample_rate,omitempty"`
}

// Identity returns the string the engine hashes track identity on.
// Name plus artist is not globally unique; collisions between releases
// are an accepted limitation.
func (t Track) Identity() string {
	return t.Name + t.Artist
}

// IsLocal reports whether the track is backed by a local file. Plain
// paths and file:// URLs count; any other URL scheme is a stream.
func (t Track) IsLocal() bool {
	if t.Location == "" {
		return false
	}
	if strings.HasPrefix(t.Location, "file://") {
		return true
	}
	return !strings.Contains(t.Location, "://")
}

// LocalPath returns the filesystem path for a local track, stripping a
// file:// prefix if present.
func (t Track) LocalPath() string {
	return strings.TrimPrefix(t.Location, "file://")
}

// String returns a display label for the track.
func (t Track) String() string {
	if t.Artist == "" {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Name)
}
