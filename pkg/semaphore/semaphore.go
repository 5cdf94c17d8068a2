// Package semaphore provides a counting semaphore used to wake the
// decoder and event threads without condition variables, so that
// signalling from the real-time render callback is strictly
// non-blocking. It is a Go channel-based equivalent of the
// dispatch_semaphore_t wrapper the original engine used.
package semaphore

import "time"

// Semaphore is a counting semaphore. Signal never blocks the caller, even
// when called concurrently from multiple goroutines (the decoder thread
// and the render callback both signal the same Semaphore in the
// coordinator).
type Semaphore struct {
	ch chan struct{}
}

// New creates a Semaphore with count 0.
func New() *Semaphore {
	// A buffered channel sized generously avoids Signal ever blocking
	// under legitimate burst signalling (one event per render callback
	// invocation between waits).
	return &Semaphore{ch: make(chan struct{}, 1<<16)}
}

// Signal wakes one blocked waiter, or increments the count if none is
// currently waiting. Never blocks.
func (s *Semaphore) Signal() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		// Channel saturated: a signal is effectively already pending.
		return false
	}
}

// Wait blocks the calling goroutine until Signal is called (or a pending
// signal is already available).
func (s *Semaphore) Wait() {
	<-s.ch
}

// TimedWait blocks until signalled or the duration elapses, returning
// true if the semaphore was signalled, false on timeout.
func (s *Semaphore) TimedWait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	}
}
