package coordinator

import (
	"sync"

	"github.com/drgolem/audioengine/pkg/decoder"
)

// queuedDecoder pairs a Decoder awaiting promotion with the ID it will
// be assigned once active.
type queuedDecoder struct {
	id      string
	decoder decoder.Decoder
}

// decoderQueue is the FIFO of decoders awaiting promotion to active
// (spec.md §3 DecoderQueue). Mutated only under mu.
type decoderQueue struct {
	mu    sync.Mutex
	items []queuedDecoder
}

func newDecoderQueue() *decoderQueue {
	return &decoderQueue{}
}

func (q *decoderQueue) push(id string, d decoder.Decoder) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queuedDecoder{id: id, decoder: d})
}

// pop removes and returns the head of the queue, or ok=false if empty.
func (q *decoderQueue) pop() (queuedDecoder, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queuedDecoder{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

func (q *decoderQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *decoderQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
