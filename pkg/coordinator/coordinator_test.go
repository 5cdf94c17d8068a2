package coordinator

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/audiosink"
	"github.com/drgolem/audioengine/pkg/decoder"
)

// fakeSink is a minimal audiosink.Sink that never touches real hardware,
// so the coordinator can be exercised without a PortAudio device.
type fakeSink struct {
	mu        sync.Mutex
	format    audioformat.Format
	running   bool
	cb        audiosink.RenderCallback
	preferred int
}

func newFakeSink(preferred int) *fakeSink {
	return &fakeSink{preferred: preferred}
}

func (s *fakeSink) Open() error  { return nil }
func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *fakeSink) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeSink) SetFormat(format audioformat.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	return nil
}

func (s *fakeSink) SetRenderCallback(cb audiosink.RenderCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

func (s *fakeSink) PreferredBufferSizeFrames() int { return s.preferred }

// fakeDecoder is a scripted decoder.Decoder. readFn is called once per
// ReadAudio invocation; a nil readFn reports end of stream immediately.
type fakeDecoder struct {
	format      audioformat.Format
	totalFrames int64

	closed atomic.Bool
	calls  atomic.Int32

	readFn func(calls int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error)
}

func (d *fakeDecoder) Open() error                        { return nil }
func (d *fakeDecoder) Close() error                       { d.closed.Store(true); return nil }
func (d *fakeDecoder) SourceFormat() audioformat.Format   { return d.format }
func (d *fakeDecoder) OutputFormat() audioformat.Format   { return d.format }
func (d *fakeDecoder) ChannelLayout() decoder.ChannelLayout { return decoder.ChannelLayout{} }
func (d *fakeDecoder) TotalFrames() int64                 { return d.totalFrames }
func (d *fakeDecoder) CurrentFrame() int64                { return 0 }
func (d *fakeDecoder) SupportsSeeking() bool              { return false }
func (d *fakeDecoder) SeekToFrame(frame int64) int64      { return -1 }

func (d *fakeDecoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	call := int(d.calls.Add(1)) - 1
	if d.readFn == nil {
		return 0, nil
	}
	return d.readFn(call, buf, nFrames)
}

// fillSilence reports n frames of silence decoded, the way a real decoder
// reports a successful ReadAudio without needing real sample data.
func fillSilence(buf *audiobuffer.Buffer, n uint32) (uint32, error) {
	bytesPerSample := buf.Format.BitsPerChannel / 8
	if err := buf.SetFill(int(n) * bytesPerSample); err != nil {
		return 0, err
	}
	return n, nil
}

func testFormat() audioformat.Format {
	return audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     44100,
		Channels:       2,
		BitsPerChannel: 16,
		IsInterleaved:  false,
	}
}

func testOptions() Options {
	return Options{
		RingBufferCapacityFrames: 4096,
		RingBufferChunkFrames:    256,
		LowWaterMarkFrames:       512,
		ActiveDecoderSlots:       4,
		EventRingBytes:           16 * 1024,
	}
}

// waitFor polls cond until it returns true or the timeout elapses, failing
// the test on timeout. Coordinator state transitions happen on background
// goroutines (the decoder thread and the event processor), so tests that
// observe them cannot simply assert immediately after calling an API.
func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

// TestErrorMidStreamRemovesDecoderState covers spec.md's "Error mid-stream"
// scenario: a decoder that reads a few chunks successfully and then fails
// must fire DecoderError and be fully retired from activeDecoders, not left
// as a zombie that starves later Enqueue calls.
func TestErrorMidStreamRemovesDecoderState(t *testing.T) {
	sink := newFakeSink(64)
	c := New(sink, testOptions())
	defer c.Close()

	boom := errors.New("boom")
	failing := &fakeDecoder{
		format:      testFormat(),
		totalFrames: -1,
		readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
			if call == 0 {
				return fillSilence(buf, nFrames)
			}
			return 0, boom
		},
	}

	var gotErr error
	var errDecoderID string
	var mu sync.Mutex
	c.SetCallbacks(Callbacks{
		DecoderError: func(decoderID string, err error) {
			mu.Lock()
			defer mu.Unlock()
			errDecoderID = decoderID
			gotErr = err
		},
	})

	id, err := c.Enqueue(failing, false)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waitFor(t, time.Second, "DecoderError callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotErr != nil
	})

	mu.Lock()
	if errDecoderID != id {
		t.Errorf("DecoderError decoder id = %q, want %q", errDecoderID, id)
	}
	if gotErr.Error() != boom.Error() {
		t.Errorf("DecoderError err = %v, want %v", gotErr, boom)
	}
	mu.Unlock()

	waitFor(t, time.Second, "failing decoder removed from active list", func() bool {
		return !activeContains(c.active, id)
	})
	if !failing.closed.Load() {
		t.Error("failing decoder was never closed")
	}

	// The bug this guards against: a zombie state permanently consumes an
	// active slot, so the decoder thread's append-retry loop spins forever
	// once all slots are exhausted and never processes another queued
	// decoder. Fill every slot with a decoder that completes immediately
	// and confirm the decoder thread actually reaches and closes each one
	// within a bounded time, rather than stalling on the first.
	slots := testOptions().ActiveDecoderSlots
	following := make([]*fakeDecoder, slots)
	for i := range following {
		d := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
			return 0, nil // completes immediately
		}}
		following[i] = d
		if _, err := c.Enqueue(d, false); err != nil {
			t.Fatalf("Enqueue #%d after error failed: %v", i, err)
		}
	}

	waitFor(t, time.Second, "all post-error decoders processed by the decoder thread", func() bool {
		for _, d := range following {
			if !d.closed.Load() {
				return false
			}
		}
		return true
	})
}

// TestSkipToNextTrackPromotesQueuedDecoder covers spec.md's "Queue skip"
// scenario: SkipToNextTrack cancels the now-active head decoder and the
// next queued decoder is promoted to head once the decoder thread retires
// the canceled one.
func TestSkipToNextTrackPromotesQueuedDecoder(t *testing.T) {
	sink := newFakeSink(64)
	c := New(sink, testOptions())
	defer c.Close()

	// first never completes on its own (always reports a full chunk
	// decoded), so it stays active until SkipToNextTrack cancels it.
	first := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
		return fillSilence(buf, nFrames)
	}}

	second := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
		if call == 0 {
			return fillSilence(buf, nFrames)
		}
		return 0, nil
	}}

	firstID, err := c.Enqueue(first, false)
	if err != nil {
		t.Fatalf("Enqueue(first) failed: %v", err)
	}
	secondID, err := c.Enqueue(second, false)
	if err != nil {
		t.Fatalf("Enqueue(second) failed: %v", err)
	}

	waitFor(t, time.Second, "first decoder to become active head", func() bool {
		h := c.active.head()
		return h != nil && h.id == firstID
	})

	if err := c.SkipToNextTrack(); err != nil {
		t.Fatalf("SkipToNextTrack failed: %v", err)
	}

	waitFor(t, time.Second, "second decoder to become active head", func() bool {
		h := c.active.head()
		return h != nil && h.id == secondID
	})

	if activeContains(c.active, firstID) {
		t.Errorf("skipped decoder %s still present in activeDecoders", firstID)
	}
	if !first.closed.Load() {
		t.Error("skipped decoder was never closed")
	}
}

// renderFrames drives the render callback directly (as the sink's
// real-time thread would) to pull frameCount frames out of the ring.
func renderFrames(c *Coordinator, frameCount int) {
	format := testFormat()
	bytesPerSample := format.BitsPerChannel / 8
	out := make([][]byte, format.Channels)
	for i := range out {
		out[i] = make([]byte, frameCount*bytesPerSample)
	}
	c.renderCallback(out, frameCount, audiosink.Timestamp{})
}

// TestDecodeCanceledWhileRenderingKeepsStateUntilRenderCompletes covers the
// other half of spec.md's Decode/Canceled event-table row: the state is
// dropped only once rendering has not begun. If rendering has already
// started, the still-buffered audio ahead of the cancellation point must
// keep playing out and only cmdRenderWillComplete may retire the state,
// so NowPlaying/RenderingFinished are not skipped for audio the listener
// is still hearing.
func TestDecodeCanceledWhileRenderingKeepsStateUntilRenderCompletes(t *testing.T) {
	sink := newFakeSink(64)
	c := New(sink, testOptions())
	defer c.Close()

	first := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
		return fillSilence(buf, nFrames)
	}}
	firstID, err := c.Enqueue(first, false)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waitFor(t, time.Second, "ring to buffer past the low-water mark", func() bool {
		ring := c.ring.Load()
		return ring != nil && ring.FramesAvailableToRead() >= uint64(testOptions().LowWaterMarkFrames)
	})

	// The render callback only advances decoder bookkeeping while the
	// engine is running (spec.md §4.3.3); Play starts it immediately
	// since the low-water mark is already met.
	if err := c.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if c.State() != StatePlaying {
		t.Fatalf("State() = %v, want %v", c.State(), StatePlaying)
	}

	// Pull a small batch so WillStart fires and renderingStarted latches,
	// but leave most of what was decoded still buffered.
	renderFrames(c, 16)

	waitFor(t, time.Second, "rendering to have started for the first decoder", func() bool {
		ds := c.active.find(firstID)
		return ds != nil && ds.renderingStarted.Load()
	})

	if err := c.SkipToNextTrack(); err != nil {
		t.Fatalf("SkipToNextTrack failed: %v", err)
	}

	waitFor(t, time.Second, "decoder thread to observe cancellation and set terminal frame", func() bool {
		ds := c.active.find(firstID)
		return ds != nil && ds.isTerminal()
	})

	// The event processor has almost certainly already drained the
	// cmdDecodeCanceled event by the time isTerminal() above observed
	// true (both are set before the decoder thread's Close/return), but
	// give it a moment to be sure before asserting the state survived.
	time.Sleep(10 * time.Millisecond)
	if !activeContains(c.active, firstID) {
		t.Fatal("canceled-but-already-rendering decoder was dropped before its buffered audio finished rendering")
	}

	// Drain whatever remains buffered for the canceled decoder; once the
	// render position reaches its terminal frame, cmdRenderWillComplete
	// must retire it.
	waitFor(t, 2*time.Second, "canceled decoder to be retired once its buffered audio finishes rendering", func() bool {
		renderFrames(c, 64)
		return !activeContains(c.active, firstID)
	})
	if !first.closed.Load() {
		t.Error("canceled decoder was never closed")
	}
}

func activeContains(ad *activeDecoders, id string) bool {
	for _, ds := range ad.load() {
		if ds.id == id {
			return true
		}
	}
	return false
}

// TestEnqueueWithoutPlayDoesNotStartSink verifies Enqueue alone leaves the
// coordinator in StateStopped; the sink only starts once Play is called
// and the low-water mark is met.
func TestEnqueueWithoutPlayDoesNotStartSink(t *testing.T) {
	sink := newFakeSink(64)
	c := New(sink, testOptions())
	defer c.Close()

	d := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
		return fillSilence(buf, nFrames)
	}}
	if _, err := c.Enqueue(d, false); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if got := c.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
	if sink.IsRunning() {
		t.Error("sink should not be running before Play")
	}
}

// TestPlayTransitionsToPendingThenPlaying verifies the low-water-mark gate
// of spec.md §4.4: right after Play the state is Pending (or already
// Playing, if the decoder thread filled the ring first), and the
// coordinator promotes itself to Playing once the decoder thread has
// filled the ring past LowWaterMarkFrames.
func TestPlayTransitionsToPendingThenPlaying(t *testing.T) {
	sink := newFakeSink(64)
	opts := testOptions()
	c := New(sink, opts)
	defer c.Close()

	d := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
		return fillSilence(buf, nFrames)
	}}
	if _, err := c.Enqueue(d, false); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := c.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if s := c.State(); s != StatePending && s != StatePlaying {
		t.Fatalf("State() right after Play = %v, want %v or %v", s, StatePending, StatePlaying)
	}

	waitFor(t, time.Second, "engine to leave Pending once buffered past low-water mark", func() bool {
		return c.State() == StatePlaying
	})
	if !sink.IsRunning() {
		t.Error("sink should be running once Playing")
	}
}

// TestStopResetsActiveDecodersAndQueue verifies Stop clears both the
// active-decoder list and the queue, per spec.md §4.3.5.
func TestStopResetsActiveDecodersAndQueue(t *testing.T) {
	sink := newFakeSink(64)
	c := New(sink, testOptions())
	defer c.Close()

	d := &fakeDecoder{format: testFormat(), totalFrames: -1, readFn: func(call int, buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
		return fillSilence(buf, nFrames)
	}}
	if _, err := c.Enqueue(d, false); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waitFor(t, time.Second, "decoder to become active", func() bool {
		return c.active.head() != nil
	})

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(c.active.load()) != 0 {
		t.Errorf("active decoders after Stop = %d, want 0", len(c.active.load()))
	}
	if c.queue.len() != 0 {
		t.Errorf("queue length after Stop = %d, want 0", c.queue.len())
	}
	if c.State() != StateStopped {
		t.Errorf("State() after Stop = %v, want %v", c.State(), StateStopped)
	}
}
