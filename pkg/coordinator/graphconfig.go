package coordinator

import (
	"log/slog"

	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/ringbuffer/audioring"
)

// configureProcessingGraphAndRingBuffer implements spec.md §4.6: stop the
// sink if running, reallocate the ring buffer for format, push format
// down to the sink, and restart the sink if playback was in progress.
// Called only from the decoder thread, and only when the format
// negotiator has decided negotiationReconfigure (or no ring exists yet).
func (c *Coordinator) configureProcessingGraphAndRingBuffer(format audioformat.Format, layout decoder.ChannelLayout) error {
	wasRunning := c.sink.IsRunning()
	if wasRunning {
		if err := c.sink.Stop(); err != nil {
			return newError(KindInternalError, "", err)
		}
		c.flags.clear(flagEngineRunning)
	}

	if err := c.sink.SetFormat(format); err != nil {
		return newError(KindUnsupportedFormat, "", err)
	}

	capacityFrames := int(c.ringCapacityFrames.Load())
	if pref := c.sink.PreferredBufferSizeFrames(); pref*8 > capacityFrames {
		capacityFrames = pref * 8
	}

	ring, err := audioring.New(format, capacityFrames)
	if err != nil {
		return newError(KindUnsupportedFormat, "", err)
	}
	c.ring.Store(ring)
	c.currentLayout = layout

	slog.Debug("processing graph reconfigured",
		"sample_rate", format.SampleRate, "channels", format.Channels,
		"capacity_frames", ring.Capacity())

	if wasRunning && c.flags.has(flagPlayRequested) {
		if err := c.sink.Start(); err != nil {
			return newError(KindInternalError, "", err)
		}
		c.flags.set(flagEngineRunning)
	}
	return nil
}
