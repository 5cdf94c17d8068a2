// Package coordinator implements the decoder-renderer coordinator that
// is the heart of the engine (spec.md §4.3): it owns the audio ring
// buffer, the active-decoder list, the decoder queue, the decoder and
// event threads, and the flags word, and implements enqueue,
// play/pause/stop, seek, and the render callback.
package coordinator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/audiosink"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/ringbuffer/audioring"
	"github.com/drgolem/audioengine/pkg/ringbuffer/eventring"
	"github.com/drgolem/audioengine/pkg/semaphore"
)

// Callbacks holds the user-facing event blocks. Decode-thread-originated
// and render-thread-originated events alike are delivered on the event
// processor's own goroutine (spec.md §7), with one exception:
// FormatMismatch is called directly on the decoder thread, before the
// new decoder's format is negotiated. UnsupportedFormat and Error are
// not called by this package.
type Callbacks struct {
	DecodingStarted   func(decoderID string)
	DecodingFinished  func(decoderID string)
	RenderingStarted  func(decoderID string, hostTime int64)
	RenderingFinished func(decoderID string, hostTime int64)
	DecoderError      func(decoderID string, err error)
	FormatMismatch    func(current, next audioformat.Format)
	UnsupportedFormat func(err error)
	Error             func(err error)
}

// RenderHook is invoked from the real-time render callback immediately
// before or after it fills the output buffer (spec.md §9 "pre- and
// post- audio rendering"). Like the callback itself, it must not
// allocate, lock, log or block.
type RenderHook func(out [][]byte, frameCount int)

// Stats exposes diagnostics-only counters (spec.md §8 scenario 5, §7
// InternalError).
type Stats struct {
	Underruns           uint64
	DroppedDecodeEvents uint64
	DroppedRenderEvents uint64
}

// Coordinator is the decoder-renderer coordinator.
type Coordinator struct {
	opts Options
	sink audiosink.Sink

	ring          atomic.Pointer[audioring.Ring]
	currentLayout decoder.ChannelLayout
	negotiator    formatNegotiator

	flags   playerFlags
	pending atomic.Bool

	active *activeDecoders
	queue  *decoderQueue

	decoderSem *semaphore.Semaphore
	eventSem   *semaphore.Semaphore

	decodeEvents *eventring.Ring
	renderEvents *eventring.Ring

	nextID atomic.Uint64

	callbacksMu sync.RWMutex
	callbacks   Callbacks

	preRenderHook  atomic.Pointer[RenderHook]
	postRenderHook atomic.Pointer[RenderHook]

	nowPlayingMu sync.Mutex
	nowPlayingID string

	underruns           atomic.Uint64
	droppedDecodeEvents atomic.Uint64
	droppedRenderEvents atomic.Uint64

	ringCapacityFrames atomic.Int64
	ringChunkFrames    atomic.Int64

	engineMutex sync.Mutex // serializes Play/Pause/Stop/Seek API calls

	stopCh chan struct{}
	wg     sync.WaitGroup

	started atomic.Bool
}

// New creates a Coordinator driving sink. The decoder and event threads
// are not started until the first Enqueue.
func New(sink audiosink.Sink, opts Options) *Coordinator {
	opts = opts.normalized()

	c := &Coordinator{
		opts:         opts,
		sink:         sink,
		active:       newActiveDecoders(),
		queue:        newDecoderQueue(),
		decoderSem:   semaphore.New(),
		eventSem:     semaphore.New(),
		decodeEvents: eventring.New(uint64(opts.EventRingBytes)),
		renderEvents: eventring.New(uint64(opts.EventRingBytes)),
		stopCh:       make(chan struct{}),
	}
	c.ringCapacityFrames.Store(int64(opts.RingBufferCapacityFrames))
	c.ringChunkFrames.Store(int64(opts.RingBufferChunkFrames))
	sink.SetRenderCallback(c.renderCallback)
	return c
}

// SetCallbacks installs the user-facing event callbacks. Safe to call at
// any time; takes effect for subsequently processed events.
func (c *Coordinator) SetCallbacks(cb Callbacks) {
	c.callbacksMu.Lock()
	defer c.callbacksMu.Unlock()
	c.callbacks = cb
}

func (c *Coordinator) getCallbacks() Callbacks {
	c.callbacksMu.RLock()
	defer c.callbacksMu.RUnlock()
	return c.callbacks
}

// SetPreRenderHook installs (or clears, with nil) the pre-render hook.
func (c *Coordinator) SetPreRenderHook(h RenderHook) {
	if h == nil {
		c.preRenderHook.Store(nil)
		return
	}
	c.preRenderHook.Store(&h)
}

// SetPostRenderHook installs (or clears, with nil) the post-render hook.
func (c *Coordinator) SetPostRenderHook(h RenderHook) {
	if h == nil {
		c.postRenderHook.Store(nil)
		return
	}
	c.postRenderHook.Store(&h)
}

// SetRingBufferCapacity sets the minimum ring buffer capacity (frames)
// used by the next processing-graph reconfiguration (spec.md §10,
// grounded on original_source Player::SetRingBufferCapacity).
func (c *Coordinator) SetRingBufferCapacity(frames int) {
	c.ringCapacityFrames.Store(int64(frames))
}

// SetRingBufferWriteChunkSize sets the minimum per-iteration decoder
// write size (frames). The decoder thread reads it when it starts each
// decoder (to size that decoder's read buffer) and on every iteration.
func (c *Coordinator) SetRingBufferWriteChunkSize(frames int) {
	c.ringChunkFrames.Store(int64(frames))
}

// NowPlaying returns the ID of the decoder currently rendering, if any.
// It corresponds to a decoder whose RenderingWillStart has fired and
// whose RenderingWillComplete has not (spec.md §5).
func (c *Coordinator) NowPlaying() (id string, ok bool) {
	c.nowPlayingMu.Lock()
	defer c.nowPlayingMu.Unlock()
	return c.nowPlayingID, c.nowPlayingID != ""
}

func (c *Coordinator) setNowPlaying(id string) {
	c.nowPlayingMu.Lock()
	c.nowPlayingID = id
	c.nowPlayingMu.Unlock()
}

func (c *Coordinator) clearNowPlayingIfMatches(id string) {
	c.nowPlayingMu.Lock()
	if c.nowPlayingID == id {
		c.nowPlayingID = ""
	}
	c.nowPlayingMu.Unlock()
}

// Stats returns a snapshot of diagnostics counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Underruns:           c.underruns.Load(),
		DroppedDecodeEvents: c.droppedDecodeEvents.Load(),
		DroppedRenderEvents: c.droppedRenderEvents.Load(),
	}
}

// State returns the current player state (spec.md §4.4).
func (c *Coordinator) State() State {
	return deriveState(c.flags.snapshot(), c.pending.Load())
}

func (c *Coordinator) ensureThreadsStarted() {
	if c.started.CompareAndSwap(false, true) {
		c.wg.Add(2)
		go c.decoderThreadLoop()
		go c.eventProcessorLoop()
	}
}

// Enqueue opens decoder (if not already open), appends it to the queue,
// and wakes the decoder thread (spec.md §4.3.1). If forImmediatePlayback
// is set, all currently active decoders are canceled and the queue is
// cleared first, so this decoder becomes the very next thing rendered.
//
// Enqueue always opens the decoder synchronously, before queueing it: an
// Open failure is returned here as a DecoderInitError and the decoder is
// not queued. Once the decoder is accepted, Enqueue returns; a later
// failure (for example, the sink rejecting its format when the decoder
// thread reaches it) is reported asynchronously as a DecoderError event.
func (c *Coordinator) Enqueue(d decoder.Decoder, forImmediatePlayback bool) (string, error) {
	id := fmt.Sprintf("d%d", c.nextID.Add(1))

	if err := d.Open(); err != nil {
		return "", newError(KindDecoderInitError, id, err)
	}

	c.ensureThreadsStarted()

	if forImmediatePlayback {
		c.cancelActiveDecoders()
		c.queue.clear()
	}

	c.queue.push(id, d)
	c.decoderSem.Signal()

	slog.Debug("decoder enqueued", "id", id, "immediate", forImmediatePlayback)
	return id, nil
}

// cancelActiveDecoders implements spec.md §4.3.6: mark every active
// state canceled. The decoder thread observes the flag cooperatively;
// the render callback treats a canceled entry as already-terminal.
func (c *Coordinator) cancelActiveDecoders() {
	c.active.cancelAll()
}

// Play implements spec.md §4.3.5. If the ring buffer already holds at
// least LowWaterMarkFrames, the sink starts immediately (Playing);
// otherwise the coordinator remains Pending until the decoder thread
// reports enough buffered frames.
func (c *Coordinator) Play() error {
	c.engineMutex.Lock()
	defer c.engineMutex.Unlock()

	c.flags.set(flagPlayRequested)

	ring := c.ring.Load()
	if ring != nil && ring.FramesAvailableToRead() >= uint64(c.opts.LowWaterMarkFrames) {
		return c.startEngineLocked()
	}

	c.pending.Store(true)
	slog.Debug("play requested, pending buffer fill")
	return nil
}

// resumeIfReady moves Pending to Playing once the ring holds at least
// LowWaterMarkFrames (spec.md §4.4). The decoder thread calls it after
// every ring write; the event processor calls it after each
// RenderingWillComplete event.
func (c *Coordinator) resumeIfReady() {
	if !c.pending.Load() {
		return
	}
	if !c.flags.has(flagPlayRequested) {
		return
	}
	ring := c.ring.Load()
	if ring == nil || ring.FramesAvailableToRead() < uint64(c.opts.LowWaterMarkFrames) {
		return
	}

	c.engineMutex.Lock()
	defer c.engineMutex.Unlock()
	if !c.pending.Load() {
		return
	}
	if err := c.startEngineLocked(); err != nil {
		slog.Error("failed to start engine after buffer fill", "error", err)
		return
	}
	slog.Debug("pending -> playing, buffer filled")
}

func (c *Coordinator) startEngineLocked() error {
	if c.sink.IsRunning() {
		c.pending.Store(false)
		c.flags.set(flagEngineRunning)
		return nil
	}
	if err := c.sink.Start(); err != nil {
		return newError(KindInternalError, "", err)
	}
	c.pending.Store(false)
	c.flags.set(flagEngineRunning)
	return nil
}

// Pause implements spec.md §4.3.5: stop the sink but let decoding
// continue filling the ring buffer.
func (c *Coordinator) Pause() error {
	c.engineMutex.Lock()
	defer c.engineMutex.Unlock()

	c.flags.clear(flagPlayRequested)
	c.pending.Store(false)
	if c.sink.IsRunning() {
		if err := c.sink.Stop(); err != nil {
			return newError(KindInternalError, "", err)
		}
	}
	c.flags.clear(flagEngineRunning)
	return nil
}

// Resume is Play, but documents the expectation that the caller observed
// StatePaused (spec.md §4.3.5).
func (c *Coordinator) Resume() error {
	return c.Play()
}

// Stop implements spec.md §4.3.5: cancel all active decoders, drain,
// stop the sink, reset the ring buffer and clear the queue.
func (c *Coordinator) Stop() error {
	c.engineMutex.Lock()
	defer c.engineMutex.Unlock()

	c.flags.clear(flagPlayRequested)
	c.pending.Store(false)
	c.cancelActiveDecoders()
	c.flags.set(flagDrainRequired)

	if c.sink.IsRunning() {
		if err := c.sink.Stop(); err != nil {
			slog.Warn("failed to stop sink during Stop", "error", err)
		}
	}
	c.flags.clear(flagEngineRunning)

	// Give the decoder thread a chance to observe cancellation and
	// finish its current chunk before the ring buffer is reset out from
	// under it.
	c.decoderSem.Signal()
	time.Sleep(time.Millisecond)

	if ring := c.ring.Load(); ring != nil {
		ring.Reset()
	}
	c.active.reset()
	c.queue.clear()
	c.flags.clear(flagDrainRequired)
	c.setNowPlaying("")

	slog.Debug("coordinator stopped")
	return nil
}

// SkipToNextTrack cancels the current now-playing decoder and lets the
// next queued/active decoder become head (spec.md §10, §8 scenario 6).
func (c *Coordinator) SkipToNextTrack() error {
	head := c.active.head()
	if head == nil {
		return ErrNotOpen
	}
	head.canceled.Store(true)
	c.decoderSem.Signal()
	return nil
}

// Close stops playback and terminates the decoder and event threads.
func (c *Coordinator) Close() error {
	_ = c.Stop()
	if c.started.Load() {
		close(c.stopCh)
		c.decoderSem.Signal()
		c.eventSem.Signal()
		c.wg.Wait()
	}
	return c.sink.Close()
}

// Mute / Unmute toggle the muted flag. Muting is observed by the render
// callback, which substitutes silence while leaving the ring buffer
// consumption (and therefore decode progress and playback position)
// unaffected.
func (c *Coordinator) Mute()   { c.flags.set(flagMuted) }
func (c *Coordinator) Unmute() { c.flags.clear(flagMuted) }
func (c *Coordinator) Muted() bool { return c.flags.has(flagMuted) }

// PlaybackPosition returns the global rendered-frame index of the
// now-playing decoder, or ok=false if nothing is rendering.
func (c *Coordinator) PlaybackPosition() (frame int64, ok bool) {
	id, has := c.NowPlaying()
	if !has {
		return 0, false
	}
	for _, ds := range c.active.load() {
		if ds.id == id {
			return ds.startingFrame + ds.framesRendered.Load(), true
		}
	}
	return 0, false
}
