package coordinator

import (
	"log/slog"
	"time"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/ringbuffer/audioring"
)

// decoderThreadLoop is the single decoder-thread goroutine of spec.md
// §4.3.2. It pops queued decoders one at a time, negotiates format
// against the current ring buffer, and decodes chunks into the ring
// until the decoder finishes, errors, or is canceled.
func (c *Coordinator) decoderThreadLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		qd, ok := c.queue.pop()
		if !ok {
			c.decoderSem.Wait()
			continue
		}

		select {
		case <-c.stopCh:
			return
		default:
		}

		c.runDecoder(qd)
	}
}

// runDecoder implements spec.md §4.3.2 steps 1-7 for a single decoder.
func (c *Coordinator) runDecoder(qd queuedDecoder) {
	format := qd.decoder.OutputFormat()
	layout := qd.decoder.ChannelLayout()

	ring := c.ring.Load()
	needsReconfigure := ring == nil
	if ring != nil {
		if isFormatMismatch(ring.Format(), format) {
			if cb := c.getCallbacks().FormatMismatch; cb != nil {
				cb(ring.Format(), format)
			}
		}
		needsReconfigure = c.negotiator.negotiate(ring.Format(), c.currentLayout, format, layout) == negotiationReconfigure
	}

	if needsReconfigure {
		if err := c.configureProcessingGraphAndRingBuffer(format, layout); err != nil {
			c.reportDecoderInitFailure(qd, err)
			return
		}
		ring = c.ring.Load()
	}

	startingFrame := c.nextStartingFrame(ring)
	ds := newDecoderState(qd.id, qd.decoder, format, startingFrame)

	for !c.active.append(ds, c.opts.ActiveDecoderSlots) {
		// Active slots exhausted: wait for the event processor to remove
		// a finished decoder, then retry.
		if c.stopRequested() {
			return
		}
		time.Sleep(time.Millisecond)
	}

	c.pushDecodeEvent(event{Source: sourceDecode, Command: cmdDecodeStarted, DecoderID: qd.id})
	slog.Debug("decode started", "id", qd.id, "starting_frame", startingFrame)

	buf := audiobuffer.New(format, int(c.ringChunkFrames.Load()))

	for {
		if ds.canceled.Load() {
			ds.setTerminalFrame()
			c.pushDecodeEvent(event{Source: sourceDecode, Command: cmdDecodeCanceled, DecoderID: qd.id})
			_ = qd.decoder.Close()
			return
		}
		if c.stopRequested() {
			_ = qd.decoder.Close()
			return
		}

		// Wait until a whole chunk fits (a chunk larger than the ring's
		// usable capacity is clamped to it).
		toRequest := int(c.ringChunkFrames.Load())
		if usable := uint64(ring.Capacity()) - 1; uint64(toRequest) > usable {
			toRequest = int(usable)
		}
		if ring.FramesAvailableToWrite() < uint64(toRequest) {
			c.decoderSem.TimedWait(2 * time.Millisecond)
			continue
		}

		buf.Reset()
		n, err := qd.decoder.ReadAudio(buf, uint32(toRequest))
		if err != nil {
			ds.setTerminalFrame()
			c.pushDecodeEvent(event{Source: sourceDecode, Command: cmdDecodeError, DecoderID: qd.id, ErrText: err.Error()})
			_ = qd.decoder.Close()
			return
		}
		if n == 0 {
			ds.setTerminalFrame()
			c.pushDecodeEvent(event{Source: sourceDecode, Command: cmdDecodeComplete, DecoderID: qd.id})
			_ = qd.decoder.Close()
			return
		}

		wrote, werr := ring.Write(buf, int(n))
		if werr != nil {
			ds.setTerminalFrame()
			c.pushDecodeEvent(event{Source: sourceDecode, Command: cmdDecodeError, DecoderID: qd.id, ErrText: werr.Error()})
			_ = qd.decoder.Close()
			return
		}
		ds.framesDecoded.Add(int64(wrote))
		c.resumeIfReady()
	}
}

// nextStartingFrame assigns the rendered-frame index at which a newly
// queued decoder's output will begin playing, per spec.md §4.3.2 step 1:
// immediately after the current tail's output, for gapless continuation.
// When the tail has no terminal frame yet, its starting frame plus its
// frames decoded so far is used. The value is computed once, when the
// decoder state is created, and is not updated afterwards.
func (c *Coordinator) nextStartingFrame(ring *audioring.Ring) int64 {
	if tail := c.active.tail(); tail != nil {
		if tail.isTerminal() {
			return tail.terminalFrame.Load()
		}
		return tail.startingFrame + tail.framesDecoded.Load()
	}
	if ring == nil {
		return 0
	}
	return int64(ring.FramesWrittenTotal())
}

func (c *Coordinator) stopRequested() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Coordinator) reportDecoderInitFailure(qd queuedDecoder, err error) {
	_ = qd.decoder.Close()
	c.pushDecodeEvent(event{Source: sourceDecode, Command: cmdDecodeError, DecoderID: qd.id, ErrText: err.Error()})
	slog.Error("failed to configure processing graph", "decoder", qd.id, "error", err)
}

func (c *Coordinator) pushDecodeEvent(e event) {
	if _, err := c.decodeEvents.Write(e.frame()); err != nil {
		c.droppedDecodeEvents.Add(1)
		slog.Warn("decode event dropped, ring full", "error", err)
		return
	}
	c.eventSem.Signal()
}
