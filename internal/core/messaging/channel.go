package messaging

import (
	"errors"
	"sync"
)

// ErrInterrupted is returned by RequestChannel.Receive when a pending
// wait is interrupted. Callers treat it as retryable.
var ErrInterrupted = errors.New("messaging: receive interrupted")

// queue is an unbounded FIFO of messages. Enqueue never blocks beyond the
// mutex; dequeue can wait on ready.
type queue struct {
	mu    sync.Mutex
	items []Message

	// ready holds a token whenever items may be non-empty.
	ready chan struct{}
	// interrupt holds a token until a blocked receiver observes it.
	interrupt chan struct{}
}

func newQueue() *queue {
	return &queue{
		ready:     make(chan struct{}, 1),
		interrupt: make(chan struct{}, 1),
	}
}

func (q *queue) push(msg Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	signal(q.ready)
}

func (q *queue) tryPop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	} else {
		// another receiver may be parked without a token
		signal(q.ready)
	}
	return msg, true
}

func (q *queue) pop() (Message, error) {
	for {
		if msg, ok := q.tryPop(); ok {
			return msg, nil
		}
		select {
		case <-q.ready:
		case <-q.interrupt:
			return nil, ErrInterrupted
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RequestChannel carries requests from the owning side to the worker.
// Capacity is unbounded: Send never blocks and never drops. Any number of
// goroutines may Send; the worker is the only caller of Receive, which
// blocks until a request is available.
type RequestChannel struct {
	q *queue
}

// NewRequestChannel returns an empty request channel.
func NewRequestChannel() *RequestChannel {
	return &RequestChannel{q: newQueue()}
}

// Send enqueues msg.
func (c *RequestChannel) Send(msg Message) {
	c.q.push(msg)
}

// Receive removes and returns the oldest request, waiting until one is
// available. It returns ErrInterrupted if Interrupt is called while the
// channel is empty.
func (c *RequestChannel) Receive() (Message, error) {
	return c.q.pop()
}

// Interrupt wakes a receiver blocked in Receive. If no receiver is
// waiting, the next wait on an empty channel is interrupted instead.
func (c *RequestChannel) Interrupt() {
	signal(c.q.interrupt)
}

// Len reports the number of queued requests.
func (c *RequestChannel) Len() int {
	return c.q.len()
}

// ResultChannel carries results from the worker to the owning side.
// Capacity is unbounded: Send never blocks and never drops. The owning
// side reads it with Poll only, which never waits, so a render or update
// loop can call it every tick.
type ResultChannel struct {
	q *queue
}

// NewResultChannel returns an empty result channel.
func NewResultChannel() *ResultChannel {
	return &ResultChannel{q: newQueue()}
}

// Send enqueues msg.
func (c *ResultChannel) Send(msg Message) {
	c.q.push(msg)
}

// Poll returns the oldest result, or false immediately when there is none.
func (c *ResultChannel) Poll() (Message, bool) {
	return c.q.tryPop()
}

// Len reports the number of queued results.
func (c *ResultChannel) Len() int {
	return c.q.len()
}

// Pair bundles the two independent channels connecting an owner and its
// worker.
type Pair struct {
	Requests *RequestChannel
	Results  *ResultChannel
}

// NewPair creates an empty request/result channel pair.
func NewPair() *Pair {
	return &Pair{
		Requests: NewRequestChannel(),
		Results:  NewResultChannel(),
	}
}
