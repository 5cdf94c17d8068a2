package coordinator

import (
	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audiosink"
)

// renderCallback is the sink's real-time callback (spec.md §4.3.3). It
// must never allocate, lock, log, or block. It is registered once in New
// and is stable for the Coordinator's lifetime; only the Ring it reads is
// swapped (atomically, by the decoder thread) underneath it.
func (c *Coordinator) renderCallback(out [][]byte, frameCount int, ts audiosink.Timestamp) int {
	if h := c.preRenderHook.Load(); h != nil {
		(*h)(out, frameCount)
	}

	ring := c.ring.Load()
	if ring == nil || !c.flags.has(flagEngineRunning) {
		silence(out)
		c.pushRenderEvent(event{Source: sourceRender, Command: cmdRenderFramesRendered, Count: uint32(frameCount), HostTime: ts.NanosSinceEpoch})
		return frameCount
	}

	dest := audiobuffer.Wrap(ring.Format(), out)
	n, err := ring.Read(dest, frameCount)
	if err != nil || n < frameCount {
		dest.ZeroPadTail(frameCount)
		if n < frameCount {
			c.underruns.Add(1)
		}
	}

	if c.flags.has(flagMuted) {
		silence(out)
	}

	c.advanceRenderedFrames(uint32(n), ts.NanosSinceEpoch)

	c.pushRenderEvent(event{Source: sourceRender, Command: cmdRenderFramesRendered, Count: uint32(frameCount), HostTime: ts.NanosSinceEpoch})

	if h := c.postRenderHook.Load(); h != nil {
		(*h)(out, frameCount)
	}

	return frameCount
}

// advanceRenderedFrames attributes the n frames just consumed from the
// ring to whichever active decoder(s) cover the current playback
// position, emitting WillStart/WillComplete boundary events as the
// position crosses a decoder's [starting_frame, terminal_frame) edges
// (spec.md §4.3.3 step 5, §4.3.4).
func (c *Coordinator) advanceRenderedFrames(n uint32, hostTime int64) {
	remaining := int64(n)
	for remaining > 0 {
		ds := c.currentRenderTarget()
		if ds == nil {
			return
		}

		if !ds.renderingStarted.Swap(true) {
			c.pushRenderEvent(event{Source: sourceRender, Command: cmdRenderWillStart, DecoderID: ds.id, HostTime: hostTime})
		}

		frame := ds.startingFrame + ds.framesRendered.Load()
		step := remaining
		if ds.isTerminal() {
			left := ds.terminalFrame.Load() - frame
			if left < step {
				step = left
			}
		}
		if step <= 0 {
			if ds.isTerminal() {
				c.pushRenderEvent(event{Source: sourceRender, Command: cmdRenderWillComplete, DecoderID: ds.id, HostTime: hostTime})
			}
			return
		}

		ds.framesRendered.Add(step)
		remaining -= step

		if ds.isTerminal() && ds.framesRendered.Load() >= ds.terminalFrame.Load()-ds.startingFrame {
			c.pushRenderEvent(event{Source: sourceRender, Command: cmdRenderWillComplete, DecoderID: ds.id, HostTime: hostTime})
		}
	}
}

// currentRenderTarget returns the active decoder currently being
// rendered: the head of the list whose output has not yet been fully
// consumed.
func (c *Coordinator) currentRenderTarget() *decoderState {
	for _, ds := range c.active.load() {
		frame := ds.startingFrame + ds.framesRendered.Load()
		if !ds.isTerminal() || frame < ds.terminalFrame.Load() {
			return ds
		}
	}
	return nil
}

func (c *Coordinator) pushRenderEvent(e event) {
	if _, err := c.renderEvents.Write(e.frame()); err != nil {
		c.droppedRenderEvents.Add(1)
		return
	}
	c.eventSem.Signal()
}

func silence(out [][]byte) {
	for _, ch := range out {
		clear(ch)
	}
}
