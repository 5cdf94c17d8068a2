package coordinator

import (
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
)

// negotiationResult is the outcome of comparing a new decoder's format
// against the current sink/ring-buffer configuration (spec.md §4.5).
type negotiationResult int

const (
	// negotiationGapless means the new decoder can play directly into
	// the current output configuration with no stop/reconfigure cycle.
	negotiationGapless negotiationResult = iota
	// negotiationReconfigure means the sink must be stopped, the ring
	// buffer reallocated, and the sink restarted for the new format.
	negotiationReconfigure
)

// formatNegotiator decides gapless-vs-reconfigure for format transitions
// (spec.md §4.5).
type formatNegotiator struct{}

// negotiate compares current (the sink/ring-buffer's present
// configuration) against next (a newly enqueued decoder's output
// format and channel layout).
func (formatNegotiator) negotiate(current audioformat.Format, currentLayout decoder.ChannelLayout, next audioformat.Format, nextLayout decoder.ChannelLayout) negotiationResult {
	if current.SampleRate != next.SampleRate {
		return negotiationReconfigure
	}
	if current.Channels != next.Channels {
		return negotiationReconfigure
	}
	if !current.SameFamily(next) {
		return negotiationReconfigure
	}
	if !layoutsMatch(currentLayout, nextLayout) {
		return negotiationReconfigure
	}
	return negotiationGapless
}

func layoutsMatch(a, b decoder.ChannelLayout) bool {
	if a.Empty() || b.Empty() {
		return true
	}
	return a.Description == b.Description
}

// isFormatMismatch reports whether a transition between two formats
// warrants a FormatMismatch callback (spec.md §4.3.2 step 3): only when
// the sample rate or channel count would change, regardless of whether
// the transition is otherwise gapless-compatible.
func isFormatMismatch(current, next audioformat.Format) bool {
	return current.SampleRate != next.SampleRate || current.Channels != next.Channels
}
