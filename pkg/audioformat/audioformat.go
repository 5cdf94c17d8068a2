// Package audioformat describes the PCM/DSD/DoP stream formats that flow
// through the engine and the frame<->byte conversions derived from them.
package audioformat

import "fmt"

// FormatID identifies the family of an audio stream. Two formats are
// gapless-compatible only when their FormatID belongs to the same family
// (PCM<->PCM, DSD<->DSD, DoP<->DoP).
type FormatID int

const (
	// PCM is conventional linear pulse-code-modulated audio.
	PCM FormatID = iota
	// DSD is one-bit Direct Stream Digital audio.
	DSD
	// DoP is DSD-over-PCM, a DSD payload packed into PCM-shaped frames.
	DoP
)

func (f FormatID) String() string {
	switch f {
	case PCM:
		return "PCM"
	case DSD:
		return "DSD"
	case DoP:
		return "DoP"
	default:
		return "unknown"
	}
}

// Format is an immutable value describing one audio stream.
//
// BytesPerFrame is derived, not stored independently: for PCM it equals
// Channels * BitsPerChannel/8 when samples are packed. DSD is bit-packed
// at 8 frames per packet per channel (see BitsPerChannel == 1).
type Format struct {
	FormatID      FormatID
	SampleRate    float64 // Hz
	Channels      int
	BitsPerChannel int
	IsInterleaved bool
	IsBigEndian   bool
}

// BytesPerFrame returns the number of bytes one frame occupies across
// all channels. It does not depend on IsInterleaved: a non-interleaved
// consumer divides by Channels to get the per-channel size.
//
// For DSD, one frame is one bit per channel; BytesPerFrame rounds up to
// whole bytes only at the packet boundary (8 frames), so callers working
// with DSD should size reads in multiples of 8 frames.
func (f Format) BytesPerFrame() int {
	if f.FormatID == DSD {
		// 1 bit/channel/frame; byte-aligned every 8 frames.
		return f.Channels
	}
	return f.Channels * f.BitsPerChannel / 8
}

// FramesToBytes converts a frame count to a byte count for this format.
func (f Format) FramesToBytes(frames int64) int64 {
	if f.FormatID == DSD {
		return (frames * int64(f.Channels)) / 8
	}
	return frames * int64(f.BytesPerFrame())
}

// BytesToFrames converts a byte count back to a frame count. It is the
// exact inverse of FramesToBytes for byte counts that are themselves
// frame-aligned, which is an invariant the engine must preserve on every
// ring buffer write.
func (f Format) BytesToFrames(bytes int64) int64 {
	if f.FormatID == DSD {
		if f.Channels <= 0 {
			return 0
		}
		return bytes * 8 / int64(f.Channels)
	}
	bpf := int64(f.BytesPerFrame())
	if bpf == 0 {
		return 0
	}
	return bytes / bpf
}

// SameFamily reports whether two formats belong to the same FormatID
// family, the first test the FormatNegotiator applies.
func (f Format) SameFamily(o Format) bool {
	return f.FormatID == o.FormatID
}

// Equal reports whether two formats are identical in every attribute the
// negotiator and ring buffer care about.
func (f Format) Equal(o Format) bool {
	return f.FormatID == o.FormatID &&
		f.SampleRate == o.SampleRate &&
		f.Channels == o.Channels &&
		f.BitsPerChannel == o.BitsPerChannel &&
		f.IsInterleaved == o.IsInterleaved &&
		f.IsBigEndian == o.IsBigEndian
}

func (f Format) String() string {
	return fmt.Sprintf("%s %gHz %dch %dbit", f.FormatID, f.SampleRate, f.Channels, f.BitsPerChannel)
}

// Validate checks that a format has at least one channel, a positive
// sample rate and, for PCM, a positive bit depth. It does not check
// IsInterleaved; audioring.New rejects interleaved formats itself.
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("audioformat: channels must be >= 1, got %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("audioformat: sample rate must be positive, got %g", f.SampleRate)
	}
	if f.FormatID == PCM && f.BitsPerChannel <= 0 {
		return fmt.Errorf("audioformat: bits per channel must be positive, got %d", f.BitsPerChannel)
	}
	return nil
}
