// Package eventring is a lock-free single-producer single-consumer ring
// buffer of raw bytes, used as the event channel from the decoder thread
// and the render callback to the event processor.
package eventring

import (
	"errors"
	"sync/atomic"
)

// ErrInsufficientSpace indicates the ring buffer doesn't have enough
// space for the write operation.
var ErrInsufficientSpace = errors.New("eventring: insufficient space")

// ErrInsufficientData indicates the ring buffer doesn't have enough data
// for the read operation.
var ErrInsufficientData = errors.New("eventring: insufficient data")

// Ring is a lock-free SPSC ring buffer of bytes.
//
//   - Write must only be called by the producer (decoder thread or render
//     callback; each owns its own Ring, so there is never more than one
//     producer per instance).
//   - Read must only be called by the single consumer (the event
//     processor).
//
// Write is all-or-nothing: on insufficient space it writes nothing and
// returns ErrInsufficientSpace, so that a dropped event can be counted
// precisely by the caller rather than partially encoded.
type Ring struct {
	buffer   []byte
	size     uint64
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a Ring with the given size in bytes, rounded up to the next
// power of two.
func New(size uint64) *Ring {
	size = nextPowerOf2(size)
	return &Ring{
		buffer: make([]byte, size),
		size:   size,
		mask:   size - 1,
	}
}

// Write writes data to the ring buffer. Producer-only.
func (r *Ring) Write(data []byte) (int, error) {
	dataLen := uint64(len(data))
	if dataLen == 0 {
		return 0, nil
	}

	if dataLen > r.AvailableWrite() {
		return 0, ErrInsufficientSpace
	}

	writePos := r.writePos.Load()
	start := writePos & r.mask
	end := (writePos + dataLen) & r.mask

	if end > start {
		copy(r.buffer[start:end], data)
	} else {
		firstChunk := r.size - start
		copy(r.buffer[start:], data[:firstChunk])
		copy(r.buffer[:end], data[firstChunk:])
	}

	// Release: the consumer must not observe the new writePos before the
	// bytes it exposes are visible.
	r.writePos.Store(writePos + dataLen)
	return int(dataLen), nil
}

// Read reads up to len(data) bytes. Consumer-only.
func (r *Ring) Read(data []byte) (int, error) {
	dataLen := uint64(len(data))
	if dataLen == 0 {
		return 0, nil
	}

	available := r.AvailableRead()
	if available == 0 {
		return 0, ErrInsufficientData
	}

	toRead := min(dataLen, available)
	readPos := r.readPos.Load()
	start := readPos & r.mask
	end := (readPos + toRead) & r.mask

	if end > start {
		copy(data[:toRead], r.buffer[start:end])
	} else {
		firstChunk := r.size - start
		copy(data[:firstChunk], r.buffer[start:])
		copy(data[firstChunk:toRead], r.buffer[:end])
	}

	r.readPos.Store(readPos + toRead)
	return int(toRead), nil
}

// AvailableWrite returns the number of bytes free for writing. One slot
// is always reserved to disambiguate full from empty (spec.md §3/§4.1),
// so usable capacity is Size()-1.
func (r *Ring) AvailableWrite() uint64 {
	writePos := r.writePos.Load()
	readPos := r.readPos.Load()
	return r.size - (writePos - readPos) - 1
}

// AvailableRead returns the number of bytes available for reading.
func (r *Ring) AvailableRead() uint64 {
	writePos := r.writePos.Load()
	readPos := r.readPos.Load()
	return writePos - readPos
}

// Size returns the total capacity of the ring buffer, including the one
// reserved disambiguation slot.
func (r *Ring) Size() uint64 { return r.size }

// Reset clears the ring buffer. Not thread-safe; callers must ensure no
// concurrent Read/Write is in flight.
func (r *Ring) Reset() {
	r.readPos.Store(0)
	r.writePos.Store(0)
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	if n < 2 {
		n = 2
	}
	return n
}
