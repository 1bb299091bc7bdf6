package httpapi

import (
	"testing"
	"time"
)

func TestIPLimiters_EvictsIdle(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := newIPLimiters(10, 5)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.get(ip)
	}
	if n := l.size(); n != 3 {
		t.Fatalf("size = %d, want 3", n)
	}

	// One client keeps talking, the others go quiet
	now = now.Add(limiterIdleTTL / 2)
	l.get("10.0.0.1")

	now = now.Add(limiterIdleTTL / 2)
	l.get("10.0.0.4")

	if n := l.size(); n != 2 {
		t.Errorf("size after sweep = %d, want 2", n)
	}
	l.mu.Lock()
	_, active := l.limiters["10.0.0.1"]
	_, idle := l.limiters["10.0.0.2"]
	l.mu.Unlock()
	if !active {
		t.Error("active client evicted")
	}
	if idle {
		t.Error("idle client not evicted")
	}
}

func TestIPLimiters_SameBucketPerIP(t *testing.T) {
	l := newIPLimiters(1, 1)

	if l.get("10.0.0.1") != l.get("10.0.0.1") {
		t.Error("expected one limiter per ip")
	}
	if l.get("10.0.0.1") == l.get("10.0.0.2") {
		t.Error("expected distinct limiters per ip")
	}
}
