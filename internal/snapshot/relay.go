// Package snapshot carries one-shot full-frame captures from the relay loop
// to the control server.
//
// The control side raises a request with Request and then consumes messages
// with Next until it receives an end marker. The relay side polls TakeRequest
// once per frame and, when it returns true, forwards every byte it reads for
// that frame with Send followed by End. Sends never block: the message queue
// is unbounded and ordered.
package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
)

// Kind tags a Message.
type Kind int

const (
	// KindChunk carries frame bytes.
	KindChunk Kind = iota
	// KindEnd terminates one snapshot.
	KindEnd
)

// Message is one element of a snapshot response.
type Message struct {
	Kind Kind
	Data []byte
}

// Relay connects snapshot requests with their chunked responses.
type Relay struct {
	pending atomic.Int64

	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{notify: make(chan struct{}, 1)}
}

// Request asks the relay loop for the next frame.
func (r *Relay) Request() {
	r.pending.Add(1)
}

// TakeRequest consumes one pending request, if any.
func (r *Relay) TakeRequest() bool {
	for {
		n := r.pending.Load()
		if n <= 0 {
			return false
		}
		if r.pending.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Send queues a copy of p as a chunk. Empty chunks are dropped.
func (r *Relay) Send(p []byte) {
	if len(p) == 0 {
		return
	}
	data := make([]byte, len(p))
	copy(data, p)
	r.push(Message{Kind: KindChunk, Data: data})
}

// End queues the end marker for the current snapshot.
func (r *Relay) End() {
	r.push(Message{Kind: KindEnd})
}

func (r *Relay) push(m Message) {
	r.mu.Lock()
	r.queue = append(r.queue, m)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is available or ctx is done.
func (r *Relay) Next(ctx context.Context) (Message, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			m := r.queue[0]
			r.queue[0] = Message{}
			r.queue = r.queue[1:]
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}
