package coordinator

import (
	"sync/atomic"

	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
)

// maxActiveDecoders bounds the number of concurrently active decoders
// (spec.md §3 ActiveDecoders, default cap; configurable up to this
// ceiling via Options.ActiveDecoderSlots).
const maxActiveDecoders = 8

// decoderState is the per-active-decoder record of spec.md §3. It is
// exclusively owned by the coordinator until rendering terminates it, at
// which point the event processor releases it.
//
// frames_decoded, frames_rendered, canceled and terminalFrame are
// accessed from more than one goroutine (the decoder thread, the
// real-time render callback, and the event processor) and are therefore
// atomics; startingFrame and the decoder reference are set once before
// the state is published and never mutated afterward.
type decoderState struct {
	id      string
	decoder decoder.Decoder
	format  audioformat.Format

	startingFrame int64 // rendered-frame index at which this stream's first sample plays

	framesDecoded  atomic.Int64
	framesRendered atomic.Int64
	totalFrames    int64 // cached at open; -1 if unknown

	canceled     atomic.Bool
	terminalFrame atomic.Int64 // 0 means "not yet set"; check hasTerminal
	hasTerminal   atomic.Bool

	renderingStarted atomic.Bool // one-shot guard for the WillStart event
}

func newDecoderState(id string, d decoder.Decoder, format audioformat.Format, startingFrame int64) *decoderState {
	ds := &decoderState{
		id:            id,
		decoder:       d,
		format:        format,
		startingFrame: startingFrame,
		totalFrames:   d.TotalFrames(),
	}
	return ds
}

// setTerminalFrame records the first rendered-frame index at which this
// decoder's output ends (starting + total decoded so far).
func (ds *decoderState) setTerminalFrame() {
	ds.terminalFrame.Store(ds.startingFrame + ds.framesDecoded.Load())
	ds.hasTerminal.Store(true)
}

func (ds *decoderState) isTerminal() bool { return ds.hasTerminal.Load() }

// covers reports whether the global rendered-frame index frame falls
// within [startingFrame, terminalFrame) for this state. If the terminal
// frame is not yet known, the upper bound is treated as +inf.
func (ds *decoderState) covers(frame int64) bool {
	if frame < ds.startingFrame {
		return false
	}
	if !ds.isTerminal() {
		return true
	}
	return frame < ds.terminalFrame.Load()
}

// activeDecoders is the bounded, ordered collection of decoderState
// (spec.md §3 ActiveDecoders). Elements are ordered by startingFrame
// ascending.
//
// The decoder thread appends under mu and publishes a new, wholly
// independent snapshot slice via an atomic pointer swap; it never
// mutates an already-published slice in place. The render callback reads
// the snapshot with a single atomic load and is therefore lock-free,
// which is the Go-idiomatic equivalent of the sequence-lock-guarded
// array spec.md §4.3.3 describes.
type activeDecoders struct {
	mu       chan struct{} // 1-buffered mutex; never held across a blocking call
	snapshot atomic.Pointer[[]*decoderState]
}

func newActiveDecoders() *activeDecoders {
	ad := &activeDecoders{mu: make(chan struct{}, 1)}
	ad.mu <- struct{}{}
	empty := make([]*decoderState, 0, maxActiveDecoders)
	ad.snapshot.Store(&empty)
	return ad
}

func (ad *activeDecoders) lock()   { <-ad.mu }
func (ad *activeDecoders) unlock() { ad.mu <- struct{}{} }

// load returns the current read-only snapshot. Safe to call from any
// goroutine, including the render callback.
func (ad *activeDecoders) load() []*decoderState {
	p := ad.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

// append adds ds to the end of the active list. Must be called with the
// decoder thread's exclusive access (it takes the internal lock itself).
// Returns false, without appending, if the list already holds cap states.
func (ad *activeDecoders) append(ds *decoderState, cap int) bool {
	ad.lock()
	defer ad.unlock()

	cur := ad.load()
	if len(cur) >= cap {
		return false
	}
	next := make([]*decoderState, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, ds)
	ad.snapshot.Store(&next)
	return true
}

// removeID drops the state with the given id, preserving order.
func (ad *activeDecoders) removeID(id string) {
	ad.lock()
	defer ad.unlock()

	cur := ad.load()
	next := make([]*decoderState, 0, len(cur))
	for _, ds := range cur {
		if ds.id != id {
			next = append(next, ds)
		}
	}
	ad.snapshot.Store(&next)
}

// cancelAll sets the canceled flag on every active state. Used by
// cancel_active_decoders (spec.md §4.3.6).
func (ad *activeDecoders) cancelAll() {
	for _, ds := range ad.load() {
		ds.canceled.Store(true)
	}
}

// cancelAfter cancels every active decoder whose startingFrame is
// strictly greater than frame (queued-ahead tracks during a seek,
// spec.md §4.3.7 step 6).
func (ad *activeDecoders) cancelAfter(frame int64) {
	for _, ds := range ad.load() {
		if ds.startingFrame > frame {
			ds.canceled.Store(true)
		}
	}
}

// head returns the first (now-playing candidate) active state, or nil.
func (ad *activeDecoders) head() *decoderState {
	cur := ad.load()
	if len(cur) == 0 {
		return nil
	}
	return cur[0]
}

// tail returns the most recently appended (last queued for gapless
// continuation) active state, or nil.
func (ad *activeDecoders) tail() *decoderState {
	cur := ad.load()
	if len(cur) == 0 {
		return nil
	}
	return cur[len(cur)-1]
}

// find returns the active state with the given id, or nil.
func (ad *activeDecoders) find(id string) *decoderState {
	for _, ds := range ad.load() {
		if ds.id == id {
			return ds
		}
	}
	return nil
}

// findCovering returns the active state whose range covers frame.
func (ad *activeDecoders) findCovering(frame int64) *decoderState {
	for _, ds := range ad.load() {
		if ds.covers(frame) {
			return ds
		}
	}
	return nil
}

// reset clears the entire active list. Used by Stop.
func (ad *activeDecoders) reset() {
	ad.lock()
	defer ad.unlock()
	empty := make([]*decoderState, 0, maxActiveDecoders)
	ad.snapshot.Store(&empty)
}
