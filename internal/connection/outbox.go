package connection

import "sync"

// outbox holds requests accepted while a connection is open. One writer
// goroutine per connection drains it, so callers of Send never wait on the socket.
type outbox struct {
	mu      sync.Mutex
	pending []Request
	wake    chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

// push appends req and wakes the writer.
func (o *outbox) push(req Request) {
	o.mu.Lock()
	o.pending = append(o.pending, req)
	o.mu.Unlock()
	o.signal()
}

// pushFront puts req back at the head, ahead of everything still pending.
func (o *outbox) pushFront(req Request) {
	o.mu.Lock()
	o.pending = append([]Request{req}, o.pending...)
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest pending request.
func (o *outbox) next() (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.pending) == 0 {
		return Request{}, false
	}
	req := o.pending[0]
	o.pending = o.pending[1:]
	return req, true
}

// takeAll removes and returns everything pending, oldest first.
func (o *outbox) takeAll() []Request {
	o.mu.Lock()
	defer o.mu.Unlock()

	reqs := o.pending
	o.pending = nil
	return reqs
}

func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
