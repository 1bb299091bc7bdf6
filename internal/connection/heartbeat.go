package connection

import (
	"sync"
	"time"
)

// Heartbeat runs a single repeating ping timer.
type Heartbeat struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewHeartbeat creates a stopped heartbeat with the given period.
func NewHeartbeat(interval time.Duration) *Heartbeat {
	return &Heartbeat{interval: interval}
}

// Start calls ping every interval until Stop. A running timer is replaced.
func (h *Heartbeat) Start(ping func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopLocked()
	if h.interval <= 0 {
		return
	}

	stop := make(chan struct{})
	h.stop = stop
	go h.run(stop, ping)
}

// Stop cancels the timer. It does not wait for an in-flight ping.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

// Running reports whether a timer is active.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop != nil
}

func (h *Heartbeat) stopLocked() {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}

func (h *Heartbeat) run(stop <-chan struct{}, ping func()) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			ping()
		}
	}
}
