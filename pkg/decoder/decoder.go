// Package decoder defines the Decoder interface the coordinator consumes
// (spec.md §6). Concrete file-format decoders live under pkg/decoders/*
// and are external collaborators, not part of the core.
package decoder

import (
	"errors"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
)

// ErrUnsupportedFormat is returned by Open when the underlying stream's
// format cannot be decoded by this Decoder.
var ErrUnsupportedFormat = errors.New("decoder: unsupported format")

// ChannelLayout optionally describes the spatial arrangement of channels
// (e.g. "L R", "L R C LFE Ls Rs"). A zero-value ChannelLayout means
// "unspecified"; the negotiator treats two unspecified layouts as equal.
type ChannelLayout struct {
	Description string
}

// Empty reports whether the layout is unspecified.
func (c ChannelLayout) Empty() bool { return c.Description == "" }

// Decoder is implemented by every concrete file-format decoder the
// coordinator can play. Open/Close/Seek may block; ReadAudio is called
// only from the coordinator's decoder thread (never the render
// callback) and may also block on I/O.
type Decoder interface {
	// Open prepares the decoder to read audio, failing with an IOError-
	// or UnsupportedFormat-wrapped error.
	Open() error

	// Close releases all resources. Safe to call after a failed Open.
	Close() error

	// SourceFormat reports the stream's native encoding.
	SourceFormat() audioformat.Format

	// OutputFormat reports the PCM/DSD/DoP format this decoder delivers
	// to ReadAudio. May differ from SourceFormat (e.g. compressed
	// sources always decode to PCM).
	OutputFormat() audioformat.Format

	// ChannelLayout optionally describes channel placement.
	ChannelLayout() ChannelLayout

	// TotalFrames returns the total frame count, or -1 if indeterminate
	// (e.g. a live stream).
	TotalFrames() int64

	// CurrentFrame returns the decoder's current read position.
	CurrentFrame() int64

	// SupportsSeeking reports whether SeekToFrame can succeed.
	SupportsSeeking() bool

	// SeekToFrame seeks to the given frame and returns the frame
	// actually landed on, or -1 on failure.
	SeekToFrame(frame int64) int64

	// ReadAudio decodes up to nFrames frames into buf and returns the
	// number of frames actually decoded. It returns 0 only at end of
	// stream or on error; a non-zero short read within a stream is
	// permitted and is not itself an error condition.
	ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error)
}
