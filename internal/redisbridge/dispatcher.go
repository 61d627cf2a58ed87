package redisbridge

import (
	"sync"

	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
)

// Dispatcher hands responses to the callers waiting on their
// correlation IDs.
type Dispatcher struct {
	mu      sync.Mutex
	waiters map[string]chan *protocol.Message
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{waiters: make(map[string]chan *protocol.Message)}
}

// Register returns the channel the response for correlationID will arrive on.
func (d *Dispatcher) Register(correlationID string) <-chan *protocol.Message {
	ch := make(chan *protocol.Message, 1)
	d.mu.Lock()
	d.waiters[correlationID] = ch
	d.mu.Unlock()
	return ch
}

// Dispatch delivers msg to its waiter and reports whether there was one.
func (d *Dispatcher) Dispatch(msg *protocol.Message) bool {
	d.mu.Lock()
	ch, ok := d.waiters[msg.Envelope.CorrelationID]
	if ok {
		delete(d.waiters, msg.Envelope.CorrelationID)
	}
	d.mu.Unlock()

	if ok {
		ch <- msg
	}
	return ok
}

// Deregister drops a waiter that gave up.
func (d *Dispatcher) Deregister(correlationID string) {
	d.mu.Lock()
	ch, ok := d.waiters[correlationID]
	if ok {
		delete(d.waiters, correlationID)
		close(ch)
	}
	d.mu.Unlock()
}

// Pending is the number of callers still waiting.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}
