// Package audiosink defines the AudioSink interface the coordinator
// drives (spec.md §6). The sink owns a real-time thread and pulls audio
// by invoking the registered RenderCallback with sink-chosen timing; the
// concrete implementation lives in pkg/sinks/portaudio.
package audiosink

import "github.com/drgolem/audioengine/pkg/audioformat"

// Timestamp is a monotonic host-time stamp identifying when a given
// frame will reach the physical output (spec.md glossary "Host time").
type Timestamp struct {
	// NanosSinceEpoch is a monotonic clock reading in nanoseconds. Its
	// epoch is sink-defined; only differences between successive
	// Timestamps are meaningful.
	NanosSinceEpoch int64
}

// RenderCallback is invoked by the sink's real-time thread to obtain the
// next block of audio. It must never block, allocate, log, or take a
// lock (spec.md §4.3.3). out is sized for frameCount frames in the
// sink's negotiated format; the callback returns the number of frames it
// actually wrote (always frameCount — under-run is filled with silence
// internally, never reported as a short write).
type RenderCallback func(out [][]byte, frameCount int, ts Timestamp) (framesWritten int)

// Sink abstracts a real-time audio output device.
type Sink interface {
	Open() error
	Close() error

	Start() error
	Stop() error
	IsRunning() bool

	// SetFormat configures the sink for format, returning an error if
	// the format cannot be supported. Must be called while stopped.
	SetFormat(format audioformat.Format) error

	// SetRenderCallback registers the callback the sink's real-time
	// thread invokes to pull audio.
	SetRenderCallback(cb RenderCallback)

	// PreferredBufferSizeFrames is the sink's preferred callback block
	// size, used to size the ring buffer (spec.md §4.6).
	PreferredBufferSizeFrames() int
}
