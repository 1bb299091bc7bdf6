package connection

import "sync"

// Queue holds outbound requests issued while the connection is not open.
type Queue struct {
	mu    sync.Mutex
	items []Request
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends req.
func (q *Queue) Enqueue(req Request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
}

// Requeue puts reqs back at the head of the queue, ahead of anything enqueued
// since, keeping their order.
func (q *Queue) Requeue(reqs ...Request) {
	if len(reqs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(reqs[:len(reqs):len(reqs)], q.items...)
	q.mu.Unlock()
}

// Flush hands every queued request to send in FIFO order. If send fails, the
// failed request and everything after it stay queued. Returns the number sent.
func (q *Queue) Flush(send func(Request) error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, req := range q.items {
		if err := send(req); err != nil {
			q.items = append(q.items[:0:0], q.items[i:]...)
			return i, err
		}
	}

	n := len(q.items)
	q.items = nil
	return n, nil
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
