// Package audioring implements the lock-free single-producer,
// single-consumer ring buffer of non-interleaved audio frames shared
// between the decoder thread and the real-time render callback
// (spec.md §4.1).
package audioring

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/audiobuffer"
)

// ErrInterleavedUnsupported is returned by New when asked to store
// an interleaved format; only non-interleaved storage is supported.
var ErrInterleavedUnsupported = errors.New("audioring: interleaved formats are not supported")

// Ring is the SPSC audio frame ring buffer. Capacity is rounded up to the
// next power of two >= 2. One frame slot is always reserved to
// disambiguate a full buffer from an empty one (spec.md §3, §9): usable
// capacity is Capacity()-1 frames.
//
// Write must be called only from the producer (the coordinator's decoder
// thread). Read must be called only from the consumer (the render
// callback). Neither allocates nor blocks.
type Ring struct {
	format   audioformat.Format
	channels [][]byte // per-channel backing storage, len == capacityFrames*bytesPerSample each
	bytesPerSample int
	capacityFrames uint64
	mask           uint64
	writePos       atomic.Uint64
	readPos        atomic.Uint64
}

// New allocates a Ring. capacityFrames is rounded up to the next power of
// two >= 2. New fails (returns nil, err) if format.IsInterleaved.
func New(format audioformat.Format, capacityFrames int) (*Ring, error) {
	if format.IsInterleaved {
		return nil, ErrInterleavedUnsupported
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	cap64 := nextPowerOf2(uint64(capacityFrames))
	if cap64 < 2 {
		cap64 = 2
	}

	bytesPerSample := format.BitsPerChannel / 8
	if bytesPerSample <= 0 {
		bytesPerSample = 1
	}

	channels := make([][]byte, format.Channels)
	for i := range channels {
		channels[i] = make([]byte, cap64*uint64(bytesPerSample))
	}

	return &Ring{
		format:         format,
		channels:       channels,
		bytesPerSample: bytesPerSample,
		capacityFrames: cap64,
		mask:           cap64 - 1,
	}, nil
}

// Format returns the format this ring was allocated for.
func (r *Ring) Format() audioformat.Format { return r.format }

// Capacity returns the total frame capacity, including the reserved slot.
func (r *Ring) Capacity() uint64 { return r.capacityFrames }

// FramesAvailableToRead returns a snapshot of how many frames the
// consumer can read right now.
func (r *Ring) FramesAvailableToRead() uint64 {
	return r.writePos.Load() - r.readPos.Load()
}

// FramesAvailableToWrite returns a snapshot of how many frames the
// producer can write right now (already excludes the reserved slot).
func (r *Ring) FramesAvailableToWrite() uint64 {
	used := r.writePos.Load() - r.readPos.Load()
	return r.capacityFrames - used - 1
}

// Write copies up to nFrames frames from src (starting at frame 0) into
// the ring, advancing the write position. It returns the number of
// frames actually written, which may be less than nFrames, or 0, but
// never blocks and never allocates. Producer-only.
func (r *Ring) Write(src *audiobuffer.Buffer, nFrames int) (int, error) {
	if src.Channels() != len(r.channels) {
		return 0, fmt.Errorf("audioring: channel count mismatch: ring=%d src=%d", len(r.channels), src.Channels())
	}

	avail := r.FramesAvailableToWrite()
	toWrite := uint64(nFrames)
	if toWrite > avail {
		toWrite = avail
	}
	if toWrite == 0 {
		return 0, nil
	}

	writePos := r.writePos.Load()
	start := writePos & r.mask
	end := (writePos + toWrite) & r.mask

	for ch := range r.channels {
		srcData := src.ChannelCapacity(ch)
		dst := r.channels[ch]
		n := toWrite * uint64(r.bytesPerSample)
		srcBytes := srcData[:n]

		startByte := start * uint64(r.bytesPerSample)
		endByte := end * uint64(r.bytesPerSample)

		if end > start || toWrite == 0 {
			copy(dst[startByte:startByte+n], srcBytes)
		} else {
			// Wraps around the end of the backing array.
			firstChunk := uint64(len(dst)) - startByte
			copy(dst[startByte:], srcBytes[:firstChunk])
			copy(dst[:endByte], srcBytes[firstChunk:])
		}
	}

	// Release: readers must never observe writePos advance before the
	// frame data it exposes is visible.
	r.writePos.Store(writePos + toWrite)
	return int(toWrite), nil
}

// Read copies up to nFrames frames into dest, starting at dest frame 0,
// and advances the read position. It sets dest's fill level to exactly
// framesActuallyRead * bytesPerSample per spec.md §4.1; it does not
// zero-pad — callers that need zero-padding on under-run call
// dest.ZeroPadTail afterward. Consumer-only.
func (r *Ring) Read(dest *audiobuffer.Buffer, nFrames int) (int, error) {
	if dest.Channels() != len(r.channels) {
		return 0, fmt.Errorf("audioring: channel count mismatch: ring=%d dest=%d", len(r.channels), dest.Channels())
	}

	// Acquire: must observe writePos before reading the frames it
	// guards.
	avail := r.FramesAvailableToRead()
	toRead := uint64(nFrames)
	if toRead > avail {
		toRead = avail
	}

	readPos := r.readPos.Load()
	start := readPos & r.mask
	end := (readPos + toRead) & r.mask

	for ch := range r.channels {
		src := r.channels[ch]
		dst := dest.ChannelCapacity(ch)
		n := toRead * uint64(r.bytesPerSample)

		startByte := start * uint64(r.bytesPerSample)
		endByte := end * uint64(r.bytesPerSample)

		if toRead == 0 {
			continue
		}
		if end > start {
			copy(dst[:n], src[startByte:endByte])
		} else {
			firstChunk := uint64(len(src)) - startByte
			copy(dst[:firstChunk], src[startByte:])
			copy(dst[firstChunk:n], src[:endByte])
		}
	}

	r.readPos.Store(readPos + toRead)
	if err := dest.SetFill(int(toRead) * r.bytesPerSample); err != nil {
		return 0, err
	}
	return int(toRead), nil
}

// FramesWrittenTotal returns the producer's cumulative write position
// since the last Reset, used by the coordinator to assign a gapless
// continuation's starting_frame (spec.md §4.3.2 step 1) when no decoder
// is yet active.
func (r *Ring) FramesWrittenTotal() uint64 { return r.writePos.Load() }

// Reset zeroes both positions. Not thread-safe: callers must ensure the
// producer and consumer are both quiesced (spec.md §4.3.5, §4.3.7).
func (r *Ring) Reset() {
	r.readPos.Store(0)
	r.writePos.Store(0)
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
