// Package audiobuffer implements the non-interleaved, per-channel audio
// buffer set shared between decoders, the audio ring buffer and the
// render callback.
package audiobuffer

import (
	"fmt"

	"github.com/drgolem/audioengine/pkg/audioformat"
)

// Buffer holds one equal-capacity byte buffer per channel plus a current
// fill level (in bytes) per channel. For non-interleaved formats every
// channel's fill level is equal after a complete write; this is enforced
// by every method on Buffer, so a caller can never observe a torn state.
type Buffer struct {
	Format         audioformat.Format
	channels       [][]byte
	fillBytes      int // shared across channels; see type comment
	capacityBytes  int
}

// Wrap builds a Buffer directly over caller-owned channel slices, with no
// allocation. Used by the render callback to let audioring.Ring write
// straight into the sink-provided output buffers (spec.md §4.3.3: the
// render callback must never allocate). All channels must share the same
// length; that length is the buffer's capacity.
func Wrap(format audioformat.Format, channels [][]byte) *Buffer {
	capacityBytes := 0
	if len(channels) > 0 {
		capacityBytes = len(channels[0])
	}
	return &Buffer{
		Format:        format,
		channels:      channels,
		capacityBytes: capacityBytes,
	}
}

// New allocates a Buffer with capacity for capacityFrames frames in each
// channel. Format.Channels determines the number of per-channel slices.
func New(format audioformat.Format, capacityFrames int) *Buffer {
	bytesPerChannelFrame := format.BytesPerFrame() / max(format.Channels, 1)
	if format.Channels > 0 && format.BytesPerFrame()%format.Channels != 0 {
		// DSD and oddly packed formats: fall back to ceil division so the
		// allocation is never short.
		bytesPerChannelFrame++
	}
	capacityBytes := capacityFrames * bytesPerChannelFrame

	channels := make([][]byte, format.Channels)
	for i := range channels {
		channels[i] = make([]byte, capacityBytes)
	}

	return &Buffer{
		Format:        format,
		channels:      channels,
		capacityBytes: capacityBytes,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Channels returns the number of per-channel buffers.
func (b *Buffer) Channels() int { return len(b.channels) }

// ChannelData returns the byte slice for channel ch, truncated to the
// current fill level. Callers must not retain the slice past the next
// mutating call on Buffer.
func (b *Buffer) ChannelData(ch int) []byte {
	return b.channels[ch][:b.fillBytes]
}

// ChannelCapacity returns the raw, full-capacity slice for channel ch,
// for producers writing new data into the buffer before calling SetFill.
func (b *Buffer) ChannelCapacity(ch int) []byte {
	return b.channels[ch]
}

// FillBytes returns the current fill level in bytes, equal across all
// channels by invariant.
func (b *Buffer) FillBytes() int { return b.fillBytes }

// CapacityBytes returns the per-channel capacity in bytes.
func (b *Buffer) CapacityBytes() int { return b.capacityBytes }

// SetFill sets the fill level (in bytes) uniformly across all channels.
// It is the producer's responsibility to have written that many bytes
// into every channel's capacity slice first.
func (b *Buffer) SetFill(bytes int) error {
	if bytes < 0 || bytes > b.capacityBytes {
		return fmt.Errorf("audiobuffer: fill %d out of range [0,%d]", bytes, b.capacityBytes)
	}
	b.fillBytes = bytes
	return nil
}

// Reset zeroes the fill level without touching the underlying memory.
func (b *Buffer) Reset() {
	b.fillBytes = 0
}

// Empty reports whether the buffer currently holds no frames.
func (b *Buffer) Empty() bool { return b.fillBytes == 0 }

// DeinterleaveFrom copies interleaved PCM bytes (as produced by most
// concrete decoders) into this buffer's per-channel, non-interleaved
// storage, returning the number of whole frames copied.
func (b *Buffer) DeinterleaveFrom(interleaved []byte, frames int) (int, error) {
	channels := b.Format.Channels
	bytesPerSample := b.Format.BitsPerChannel / 8
	if bytesPerSample <= 0 {
		return 0, fmt.Errorf("audiobuffer: cannot deinterleave format %s", b.Format)
	}

	maxFrames := b.capacityBytes / bytesPerSample
	if frames > maxFrames {
		frames = maxFrames
	}
	needed := frames * channels * bytesPerSample
	if needed > len(interleaved) {
		frames = len(interleaved) / (channels * bytesPerSample)
	}

	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			srcOff := (f*channels + ch) * bytesPerSample
			dstOff := f * bytesPerSample
			copy(b.channels[ch][dstOff:dstOff+bytesPerSample], interleaved[srcOff:srcOff+bytesPerSample])
		}
	}

	if err := b.SetFill(frames * bytesPerSample); err != nil {
		return 0, err
	}
	return frames, nil
}

// InterleaveInto copies this buffer's non-interleaved content into dst as
// interleaved PCM bytes, up to the buffer's current fill level. It
// returns the number of whole frames written.
func (b *Buffer) InterleaveInto(dst []byte) int {
	channels := b.Format.Channels
	bytesPerSample := b.Format.BitsPerChannel / 8
	if bytesPerSample <= 0 || channels == 0 {
		return 0
	}

	frames := b.fillBytes / bytesPerSample
	maxFrames := len(dst) / (channels * bytesPerSample)
	if frames > maxFrames {
		frames = maxFrames
	}

	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			srcOff := f * bytesPerSample
			dstOff := (f*channels + ch) * bytesPerSample
			copy(dst[dstOff:dstOff+bytesPerSample], b.channels[ch][srcOff:srcOff+bytesPerSample])
		}
	}
	return frames
}

// ZeroPadTail fills the buffer from the current fill level (in frames) up
// to targetFrames with silence, across every channel, and advances the
// fill level accordingly. Used by the render callback on under-run.
func (b *Buffer) ZeroPadTail(targetFrames int) {
	bytesPerSample := b.Format.BitsPerChannel / 8
	if bytesPerSample <= 0 {
		bytesPerSample = 1
	}
	target := targetFrames * bytesPerSample
	if target > b.capacityBytes {
		target = b.capacityBytes
	}
	for ch := range b.channels {
		if target > b.fillBytes {
			clear(b.channels[ch][b.fillBytes:target])
		}
	}
	if target > b.fillBytes {
		b.fillBytes = target
	}
}
