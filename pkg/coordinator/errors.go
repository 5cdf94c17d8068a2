package coordinator

import (
	"errors"
	"fmt"
)

// ErrKind classifies the user-visible error kinds of spec.md §7.
type ErrKind int

const (
	// KindIOError covers input source or decoder read failures.
	KindIOError ErrKind = iota
	// KindUnsupportedFormat covers a sink that cannot be configured for
	// a decoder's format.
	KindUnsupportedFormat
	// KindDecoderInitError covers Decoder.Open returning failure.
	KindDecoderInitError
	// KindInternalError covers diagnostics-only conditions: event ring
	// drops, lock contention above threshold.
	KindInternalError
)

func (k ErrKind) String() string {
	switch k {
	case KindIOError:
		return "IOError"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindDecoderInitError:
		return "DecoderInitError"
	case KindInternalError:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying error with a Kind and, where applicable, the
// ID of the decoder involved.
type Error struct {
	Kind      ErrKind
	DecoderID string
	Err       error
}

func (e *Error) Error() string {
	if e.DecoderID != "" {
		return fmt.Sprintf("coordinator: %s (decoder %s): %v", e.Kind, e.DecoderID, e.Err)
	}
	return fmt.Sprintf("coordinator: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrKind, decoderID string, err error) *Error {
	return &Error{Kind: kind, DecoderID: decoderID, Err: err}
}

// ErrNoActiveDecoderForFrame is returned by SeekToFrame when no active
// decoder's [starting_frame, terminal_frame) contains the requested
// global frame.
var ErrNoActiveDecoderForFrame = errors.New("coordinator: no active decoder covers that frame")

// ErrNotOpen is returned by SkipToNextTrack when no decoder is active,
// and by the seek calls when no decoder is now playing.
var ErrNotOpen = errors.New("coordinator: no decoder enqueued")

// ErrQueueFull reports that every active decoder slot is in use. No
// function in this package returns it: Enqueue always queues, and the
// decoder thread waits for a free slot instead.
var ErrQueueFull = errors.New("coordinator: active decoder slots exhausted")
