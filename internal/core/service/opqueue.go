package service

import (
	"context"
	"sync"
)

type engineOp func(ctx context.Context)

// opQueue runs engine operations one at a time, in submission order, off the
// controller's event loop. push never blocks.
type opQueue struct {
	mu     sync.Mutex
	queue  []engineOp
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *opQueue) push(op engineOp) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.queue = append(q.queue, op)
	q.mu.Unlock()
	q.signal()
	return true
}

// close stops accepting work. Operations already queued still run.
func (q *opQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *opQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *opQueue) run(ctx context.Context) {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.queue
		q.queue = nil
		closed := q.closed
		q.mu.Unlock()

		for _, op := range batch {
			op(ctx)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
