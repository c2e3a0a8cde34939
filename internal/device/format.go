// Package device abstracts physical audio output devices: enumeration,
// current format reads and format writes. The hardware format is an
// externally owned resource, another process or the user may change it at
// any time, so callers must re-read before deciding to write.
package device

import (
	"fmt"
	"math"
)

// Format describes a device's physical stream configuration. BitDepth 0
// means "unconstrained", the device keeps or chooses its own depth.
type Format struct {
	SampleRate float64
	BitDepth   int
	FormatID   uint32
}

// Info identifies an output device.
type Info struct {
	ID        string
	Name      string
	IsDefault bool
}

// String renders the format as a human readable label, e.g.
// "96.0 kHz / 24-bit" or "44.1 kHz" when the depth is unconstrained.
func (f Format) String() string {
	khz := f.SampleRate / 1000.0
	if f.BitDepth > 0 {
		return fmt.Sprintf("%.1f kHz / %d-bit", khz, f.BitDepth)
	}
	return fmt.Sprintf("%.1f kHz", khz)
}

// SameRate reports whether two rates are equal within epsilon Hz.
func SameRate(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// CandidateDepths returns the bit depths to attempt when writing a format.
// With a pinned depth only that depth is tried; otherwise depths are tried
// in descending order since some devices reject a specific depth without
// rejecting the rate.
func CandidateDepths(pinned int) []int {
	if pinned > 0 {
		return []int{pinned}
	}
	return []int{32, 24, 16}
}
