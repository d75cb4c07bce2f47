package engine

import "sync"

// commandQueue is a thread-safe FIFO queue of commands.
//
// The queue is unbounded so live systems can enqueue arbitrarily many
// insertions within one frame without blocking.
//
// Thread-safety is provided for external enqueuing (control surfaces, input
// goroutines) while the frame loop drains. In practice, most usage is
// single-threaded.
type commandQueue struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
}

// newCommandQueue creates an empty command queue.
func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]Command, 0, 64),
	}
}

// Enqueue adds a command to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(c Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.commands = append(q.commands, c)
	return true
}

// Drain removes and returns every queued command in FIFO order.
func (q *commandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return nil
	}
	out := q.commands
	q.commands = make([]Command, 0, cap(out))
	return out
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close rejects further commands. Queued commands can still be drained.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether Close was called.
func (q *commandQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
