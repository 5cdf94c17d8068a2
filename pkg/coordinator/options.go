package coordinator

// Options configures a Coordinator (spec.md §6 "Configuration options
// recognised by the coordinator"), mirroring the teacher's
// audioplayer.Config / DefaultConfig pattern.
type Options struct {
	// RingBufferCapacityFrames is the minimum audio ring-buffer
	// capacity, rounded up to a power of two.
	RingBufferCapacityFrames int
	// RingBufferChunkFrames is the minimum write size per decoder
	// iteration.
	RingBufferChunkFrames int
	// LowWaterMarkFrames is the ring-buffer occupancy required for
	// Pending to transition to Playing.
	LowWaterMarkFrames int
	// ActiveDecoderSlots bounds concurrently active decoders (max 8,
	// spec.md §3).
	ActiveDecoderSlots int
	// EventRingBytes sizes each of the two event ring buffers.
	EventRingBytes int
}

// DefaultOptions returns sensible defaults, scaled for 44.1kHz stereo
// 16-bit PCM at a typical output block size.
func DefaultOptions() Options {
	return Options{
		RingBufferCapacityFrames: 65536, // ~1.5s at 44.1kHz
		RingBufferChunkFrames:    4096,
		LowWaterMarkFrames:       8192,
		ActiveDecoderSlots:       maxActiveDecoders,
		EventRingBytes:           64 * 1024,
	}
}

func (o Options) normalized() Options {
	if o.RingBufferCapacityFrames <= 0 {
		o.RingBufferCapacityFrames = DefaultOptions().RingBufferCapacityFrames
	}
	if o.RingBufferChunkFrames <= 0 {
		o.RingBufferChunkFrames = DefaultOptions().RingBufferChunkFrames
	}
	if o.LowWaterMarkFrames <= 0 {
		o.LowWaterMarkFrames = DefaultOptions().LowWaterMarkFrames
	}
	if o.ActiveDecoderSlots <= 0 || o.ActiveDecoderSlots > maxActiveDecoders {
		o.ActiveDecoderSlots = maxActiveDecoders
	}
	if o.EventRingBytes <= 0 {
		o.EventRingBytes = DefaultOptions().EventRingBytes
	}
	return o
}
