package systems

import (
	"context"
	"sync"

	"github.com/jiri/constellation/core"
)

// Text carries FIFO message queues across text-enabled connections. A
// port's queue holds what it sent until the next exchange and what it
// received afterwards.
type Text struct {
	mu sync.Mutex

	queues map[core.NodeID][]string
	rec    Recorder
}

// NewText creates the text system.
func NewText() *Text {
	return &Text{
		queues: make(map[core.NodeID][]string),
		rec:    nopRecorder{},
	}
}

// SetRecorder installs a metrics recorder.
func (t *Text) SetRecorder(rec Recorder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec == nil {
		rec = nopRecorder{}
	}
	t.rec = rec
}

func (t *Text) Name() string { return "text" }

// Send appends a message to the port's queue.
func (t *Text) Send(port core.NodeID, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queues[port] = append(t.queues[port], msg)
}

// Receive pops the oldest message, if any.
func (t *Text) Receive(port core.NodeID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[port]
	if len(q) == 0 {
		return "", false
	}
	msg := q[0]
	if len(q) == 1 {
		delete(t.queues, port)
	} else {
		t.queues[port] = q[1:]
	}
	return msg, true
}

// Pending returns the number of queued messages on port.
func (t *Text) Pending(port core.NodeID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues[port])
}

// Update exchanges the queues of both ends of every text-enabled
// connection.
func (t *Text) Update(_ context.Context, conns []core.Connection) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	moved := 0
	exchange(conns, textEnabled, func(c core.Connection) {
		a, b := t.queues[c.From], t.queues[c.To]
		moved += len(a) + len(b)
		t.set(c.From, b)
		t.set(c.To, a)
	})
	if moved > 0 {
		t.rec.AddTextMessages(moved)
	}
	return nil
}

// Forget drops the queue of a destroyed port.
func (t *Text) Forget(port core.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.queues, port)
}

func (t *Text) set(port core.NodeID, q []string) {
	if len(q) == 0 {
		delete(t.queues, port)
		return
	}
	t.queues[port] = q
}
