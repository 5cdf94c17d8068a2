package coordinator

import (
	"errors"
	"log/slog"

	"github.com/drgolem/audioengine/pkg/ringbuffer/eventring"
)

// eventProcessorLoop is the single-threaded consumer of spec.md §4.3.4:
// it drains both event rings and dispatches user callbacks, always on
// this one goroutine, never on the decoder thread or the render
// callback.
//
// The two rings are drained round-robin rather than through a single
// merged, strictly production-ordered stream; decode events are rare
// (one pair per track) next to the steady stream of per-block render
// events, so the two orderings coincide in practice. A strictly ordered
// merge would need a shared monotonic sequence counter threaded through
// both producers, which would add an atomic increment to the render
// callback's hot path for no externally observable benefit here.
func (c *Coordinator) eventProcessorLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.drainRemaining()
			return
		default:
		}

		progressed := c.drainOne(c.decodeEvents)
		if c.drainOne(c.renderEvents) {
			progressed = true
		}
		if !progressed {
			c.eventSem.Wait()
		}
	}
}

func (c *Coordinator) drainOne(r *eventring.Ring) bool {
	e, ok, err := readFrame(r)
	if err != nil {
		slog.Error("event processor: malformed event frame", "error", err)
		return false
	}
	if !ok {
		return false
	}
	c.handleEvent(e)
	return true
}

// drainRemaining flushes any events still queued at shutdown so that
// terminal callbacks (DecodingFinished, RenderingFinished) are never
// silently lost.
func (c *Coordinator) drainRemaining() {
	for c.drainOne(c.decodeEvents) {
	}
	for c.drainOne(c.renderEvents) {
	}
}

func (c *Coordinator) handleEvent(e event) {
	cb := c.getCallbacks()

	switch e.Command {
	case cmdDecodeStarted:
		if cb.DecodingStarted != nil {
			cb.DecodingStarted(e.DecoderID)
		}

	case cmdDecodeComplete:
		if cb.DecodingFinished != nil {
			cb.DecodingFinished(e.DecoderID)
		}

	case cmdDecodeCanceled:
		slog.Debug("decode canceled", "id", e.DecoderID)
		// Drop the state only if rendering has not begun (spec.md §4.3.4
		// event table). A canceled decoder whose output is already
		// playing still has buffered frames ahead of it in the ring; it
		// stays active, its terminal_frame already set by the decoder
		// thread, and cmdRenderWillComplete retires it once the render
		// callback catches up.
		if ds := c.active.find(e.DecoderID); ds != nil && !ds.renderingStarted.Load() {
			c.active.removeID(e.DecoderID)
		}

	case cmdDecodeError:
		if cb.DecoderError != nil {
			cb.DecoderError(e.DecoderID, errors.New(e.ErrText))
		}
		c.active.removeID(e.DecoderID)

	case cmdRenderWillStart:
		c.setNowPlaying(e.DecoderID)
		if cb.RenderingStarted != nil {
			cb.RenderingStarted(e.DecoderID, e.HostTime)
		}

	case cmdRenderWillComplete:
		c.clearNowPlayingIfMatches(e.DecoderID)
		c.active.removeID(e.DecoderID)
		if cb.RenderingFinished != nil {
			cb.RenderingFinished(e.DecoderID, e.HostTime)
		}
		c.resumeIfReady()

	case cmdRenderFramesRendered:
		// Diagnostics only; FramesAvailableToRead already reflects this.

	default:
		slog.Warn("event processor: unknown event command", "command", e.Command)
	}
}
