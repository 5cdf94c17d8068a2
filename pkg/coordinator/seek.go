package coordinator

import "log/slog"

// SeekToFrame implements spec.md §4.3.7: identify the active decoder
// covering the global frame, pause the sink, reset the ring buffer, seek
// the decoder, rebase its counters, cancel queued-ahead decoders, and
// resume if the sink was running.
func (c *Coordinator) SeekToFrame(frame int64) error {
	c.engineMutex.Lock()
	defer c.engineMutex.Unlock()

	ds := c.active.findCovering(frame)
	if ds == nil {
		return ErrNoActiveDecoderForFrame
	}

	wasRunning := c.sink.IsRunning()
	if wasRunning {
		if err := c.sink.Stop(); err != nil {
			return newError(KindInternalError, ds.id, err)
		}
		c.flags.clear(flagEngineRunning)
	}
	c.flags.clear(flagDrainRequired)

	if ring := c.ring.Load(); ring != nil {
		ring.Reset()
	}

	localFrame := frame - ds.startingFrame
	if newPos := ds.decoder.SeekToFrame(localFrame); newPos < 0 {
		slog.Warn("decoder seek failed, continuing from current position", "decoder", ds.id, "requested", localFrame)
	} else {
		localFrame = newPos
	}

	ds.framesDecoded.Store(localFrame)
	ds.framesRendered.Store(localFrame)
	ds.hasTerminal.Store(false)
	ds.renderingStarted.Store(true) // already playing this decoder; don't re-fire WillStart

	c.active.cancelAfter(frame)

	if wasRunning {
		if err := c.sink.Start(); err != nil {
			return newError(KindInternalError, ds.id, err)
		}
		c.flags.set(flagEngineRunning)
	}

	c.decoderSem.Signal()
	return nil
}

// SeekForward seeks forward by seconds from the now-playing decoder's
// current position.
func (c *Coordinator) SeekForward(seconds float64) error {
	return c.seekRelative(seconds)
}

// SeekBackward seeks backward by seconds.
func (c *Coordinator) SeekBackward(seconds float64) error {
	return c.seekRelative(-seconds)
}

func (c *Coordinator) seekRelative(deltaSeconds float64) error {
	pos, ok := c.PlaybackPosition()
	if !ok {
		return ErrNotOpen
	}
	ds := c.active.findCovering(pos)
	if ds == nil {
		return ErrNoActiveDecoderForFrame
	}
	deltaFrames := int64(deltaSeconds * ds.format.SampleRate)
	target := pos + deltaFrames
	if target < ds.startingFrame {
		target = ds.startingFrame
	}
	return c.SeekToFrame(target)
}

// SeekToTime seeks the now-playing decoder to an absolute position in
// seconds from its own start.
func (c *Coordinator) SeekToTime(seconds float64) error {
	id, ok := c.NowPlaying()
	if !ok {
		return ErrNotOpen
	}
	for _, ds := range c.active.load() {
		if ds.id != id {
			continue
		}
		frame := ds.startingFrame + int64(seconds*ds.format.SampleRate)
		return c.SeekToFrame(frame)
	}
	return ErrNoActiveDecoderForFrame
}

// SeekToPosition seeks the now-playing decoder to a fraction [0,1] of its
// total length. Fails with ErrNoActiveDecoderForFrame if the decoder's
// total length is unknown.
func (c *Coordinator) SeekToPosition(fraction float64) error {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	id, ok := c.NowPlaying()
	if !ok {
		return ErrNotOpen
	}
	for _, ds := range c.active.load() {
		if ds.id != id {
			continue
		}
		if ds.totalFrames < 0 {
			return ErrNoActiveDecoderForFrame
		}
		frame := ds.startingFrame + int64(fraction*float64(ds.totalFrames))
		return c.SeekToFrame(frame)
	}
	return ErrNoActiveDecoderForFrame
}
