package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeClient is an in-memory Client for driving the manager without a socket.
type fakeClient struct {
	connectErr error
	sendErr    error
	sendGate   chan struct{} // Send blocks until closed, when set

	mu   sync.Mutex
	sent [][]byte

	messages  chan TimestampedMessage
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeClient(connectErr error) *fakeClient {
	return &fakeClient{
		connectErr: connectErr,
		messages:   make(chan TimestampedMessage, 10),
		errors:     make(chan error, 1),
		done:       make(chan struct{}),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error { return f.connectErr }
func (f *fakeClient) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}
func (f *fakeClient) Send(data []byte) error {
	if f.sendGate != nil {
		<-f.sendGate
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}
func (f *fakeClient) requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	reqs := make([]Request, 0, len(f.sent))
	for _, data := range f.sent {
		var req Request
		if err := json.Unmarshal(data, &req); err == nil {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

func (f *fakeClient) Messages() <-chan TimestampedMessage { return f.messages }
func (f *fakeClient) Errors() <-chan error                { return f.errors }
func (f *fakeClient) Done() <-chan struct{}               { return f.done }
func (f *fakeClient) IsConnected() bool                   { return true }

func testManagerConfig(url string) ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.URL = url
	cfg.InitialReconnectDelay = 20 * time.Millisecond
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 40 * time.Millisecond
	cfg.PingInterval = 0
	cfg.BufferSize = 100
	return cfg
}

// recordingServer starts a mock stream that records every request per connection.
// onConn may write frames; it runs after the read goroutine starts.
type recordingServer struct {
	mu    sync.Mutex
	conns [][]Request
	recv  chan Request
}

func newRecordingServer(t *testing.T, onConn func(n int, conn *websocket.Conn, reqs <-chan Request)) (*recordingServer, string, func()) {
	rs := &recordingServer{recv: make(chan Request, 100)}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		rs.mu.Lock()
		n := len(rs.conns)
		rs.conns = append(rs.conns, nil)
		rs.mu.Unlock()

		reqs := make(chan Request, 100)
		go func() {
			defer close(reqs)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var req Request
				if err := json.Unmarshal(data, &req); err != nil {
					continue
				}
				rs.mu.Lock()
				rs.conns[n] = append(rs.conns[n], req)
				rs.mu.Unlock()
				reqs <- req
				rs.recv <- req
			}
		}()

		onConn(n, conn, reqs)
	})

	return rs, wsURL(server), server.Close
}

func (rs *recordingServer) requests(n int) []Request {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if n >= len(rs.conns) {
		return nil
	}
	return append([]Request(nil), rs.conns[n]...)
}

func (rs *recordingServer) connCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.conns)
}

func waitRequests(t *testing.T, ch <-chan Request, n int) []Request {
	t.Helper()
	var got []Request
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case req, ok := <-ch:
			if !ok {
				t.Fatalf("connection closed after %d of %d requests", len(got), n)
			}
			got = append(got, req)
		case <-timeout:
			t.Fatalf("timeout waiting for requests, received %d of %d", len(got), n)
		}
	}
	return got
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func keepOpen(_ int, _ *websocket.Conn, reqs <-chan Request) {
	for range reqs {
	}
}

func TestManager_TickDelivered(t *testing.T) {
	ticker := `{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","last":"65000.5","ts":"1700000000000"}]}`

	_, url, stop := newRecordingServer(t, func(_ int, conn *websocket.Conn, reqs <-chan Request) {
		req := <-reqs
		if req.Op != OpSubscribe {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(ticker))
		for range reqs {
		}
	})
	defer stop()

	ticks := make(chan Tick, 10)
	m := NewManager(testManagerConfig(url), slog.Default())
	m.SetPairSource(func() []string { return []string{"BTC-USDT"} })
	m.SetTickHandler(func(tk Tick) { ticks <- tk })

	m.Open(context.Background())
	defer m.Close()

	select {
	case tk := <-ticks:
		if tk.Pair != "BTC-USDT" {
			t.Errorf("Pair = %q, want BTC-USDT", tk.Pair)
		}
		if tk.Last != 65000.5 {
			t.Errorf("Last = %v, want 65000.5", tk.Last)
		}
		if tk.Timestamp != 1700000000000 {
			t.Errorf("Timestamp = %d, want 1700000000000", tk.Timestamp)
		}
		if tk.ReceivedAt.IsZero() {
			t.Error("ReceivedAt should not be zero")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for tick")
	}
}

func TestManager_FlushBeforeResubscribe(t *testing.T) {
	rs, url, stop := newRecordingServer(t, keepOpen)
	defer stop()

	m := NewManager(testManagerConfig(url), nil)
	m.SetPairSource(func() []string { return []string{"ETH-USDT"} })

	// Issued while closed
	m.Send(UnsubscribeRequest("SOL-USDT"))
	m.Send(SubscribeRequest("BTC-USDT"))
	if got := m.Stats().Queued; got != 2 {
		t.Fatalf("Queued = %d, want 2", got)
	}

	m.Open(context.Background())
	defer m.Close()

	got := waitRequests(t, rs.recv, 3)
	want := []struct{ op, pair string }{
		{OpUnsubscribe, "SOL-USDT"},
		{OpSubscribe, "BTC-USDT"},
		{OpSubscribe, "ETH-USDT"},
	}
	for i, w := range want {
		if got[i].Op != w.op || got[i].Args[0].InstID != w.pair {
			t.Errorf("request %d = %s %s, want %s %s", i, got[i].Op, got[i].Args[0].InstID, w.op, w.pair)
		}
	}

	if q := m.Stats().Queued; q != 0 {
		t.Errorf("Queued after open = %d, want 0", q)
	}
}

func TestManager_QueuedSentExactlyOnce(t *testing.T) {
	rs, url, stop := newRecordingServer(t, func(n int, _ *websocket.Conn, reqs <-chan Request) {
		if n == 0 {
			// First connection: take flush + resubscribe, then drop
			<-reqs
			<-reqs
			return
		}
		for range reqs {
		}
	})
	defer stop()

	m := NewManager(testManagerConfig(url), nil)
	m.SetPairSource(func() []string { return []string{"ETH-USDT"} })
	m.Send(SubscribeRequest("BTC-USDT"))

	m.Open(context.Background())
	defer m.Close()

	waitFor(t, "resubscribe on second connection", func() bool {
		return len(rs.requests(1)) >= 1
	})
	time.Sleep(50 * time.Millisecond)

	first := rs.requests(0)
	if len(first) != 2 || first[0].Args[0].InstID != "BTC-USDT" || first[1].Args[0].InstID != "ETH-USDT" {
		t.Errorf("first connection requests = %+v", first)
	}

	for _, req := range rs.requests(1) {
		if req.Args[0].InstID == "BTC-USDT" {
			t.Error("queued request re-sent on second connection")
		}
	}

	if m.Stats().Reconnects < 1 {
		t.Errorf("Reconnects = %d, want >= 1", m.Stats().Reconnects)
	}
}

func TestManager_SendWhileOpen(t *testing.T) {
	rs, url, stop := newRecordingServer(t, keepOpen)
	defer stop()

	m := NewManager(testManagerConfig(url), nil)
	m.Open(context.Background())
	defer m.Close()

	waitFor(t, "open", func() bool { return m.State() == Open })

	m.Send(SubscribeRequest("DOGE-USDT"))
	got := waitRequests(t, rs.recv, 1)
	if got[0].Op != OpSubscribe || got[0].Args[0].InstID != "DOGE-USDT" {
		t.Errorf("request = %+v", got[0])
	}
	if m.Stats().Queued != 0 {
		t.Error("request queued while open")
	}
	if m.Stats().Session == "" {
		t.Error("expected session id while open")
	}
}

func TestManager_Heartbeat(t *testing.T) {
	rs, url, stop := newRecordingServer(t, keepOpen)
	defer stop()

	cfg := testManagerConfig(url)
	cfg.PingInterval = 30 * time.Millisecond

	m := NewManager(cfg, nil)
	m.Open(context.Background())

	got := waitRequests(t, rs.recv, 2)
	for _, req := range got {
		if req.Op != OpPing {
			t.Errorf("Op = %q, want ping", req.Op)
		}
	}
	if !m.Stats().HeartbeatRunning {
		t.Error("expected heartbeat running while open")
	}

	m.Close()
	if m.Stats().HeartbeatRunning {
		t.Error("expected heartbeat stopped after Close")
	}
}

func TestManager_PingNotQueuedWhileClosed(t *testing.T) {
	m := NewManager(testManagerConfig("ws://127.0.0.1:1"), nil)
	m.ping()

	if q := m.Stats().Queued; q != 0 {
		t.Errorf("Queued = %d, want 0", q)
	}
}

func TestManager_SingleReconnectTimer(t *testing.T) {
	cfg := testManagerConfig("ws://unused")
	cfg.InitialReconnectDelay = time.Hour

	m := NewManager(cfg, nil)
	fc := newFakeClient(nil)

	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.client = fc
	m.state = Open

	m.dropLocked(fc, errors.New("first close"))
	// Second close event for the same connection
	m.dropLocked(fc, errors.New("second close"))
	// Direct request while a timer is pending
	m.scheduleReconnectLocked()

	seq := m.retry.seq
	pending := m.retry.pending()
	state := m.state
	m.mu.Unlock()
	defer m.Close()

	if seq != 1 {
		t.Errorf("timers armed = %d, want 1", seq)
	}
	if !pending {
		t.Error("expected a pending reconnect")
	}
	if state != Closed {
		t.Errorf("State = %v, want closed", state)
	}

	select {
	case <-fc.Done():
	default:
		t.Error("expected dropped client to be closed")
	}
}

func TestManager_StaleCloseIgnored(t *testing.T) {
	m := NewManager(testManagerConfig("ws://unused"), nil)
	current := newFakeClient(nil)
	stale := newFakeClient(nil)

	m.mu.Lock()
	m.client = current
	m.state = Open
	m.dropLocked(stale, errors.New("old connection"))
	state := m.state
	pending := m.retry.pending()
	m.mu.Unlock()

	if state != Open {
		t.Errorf("State = %v, want open", state)
	}
	if pending {
		t.Error("stale close scheduled a reconnect")
	}
}

func TestManager_BackoffOnDialFailure(t *testing.T) {
	var dials atomic.Int32
	m := NewManager(testManagerConfig("ws://unused"), nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client {
		dials.Add(1)
		return newFakeClient(errors.New("connection refused"))
	}

	m.Open(context.Background())
	waitFor(t, "repeated dial attempts", func() bool { return dials.Load() >= 4 })

	stats := m.Stats()
	if stats.Attempt < 3 {
		t.Errorf("Attempt = %d, want >= 3", stats.Attempt)
	}

	m.Close()
	after := dials.Load()
	time.Sleep(100 * time.Millisecond)
	if dials.Load() != after {
		t.Error("dial attempted after Close")
	}
	if m.Stats().ReconnectPending {
		t.Error("reconnect pending after Close")
	}
}

func TestManager_OpenCancelsPendingTimer(t *testing.T) {
	cfg := testManagerConfig("ws://unused")
	cfg.InitialReconnectDelay = time.Hour
	cfg.ReconnectBaseDelay = time.Hour
	cfg.ReconnectMaxDelay = time.Hour

	var dials atomic.Int32
	m := NewManager(cfg, nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client {
		dials.Add(1)
		return newFakeClient(errors.New("connection refused"))
	}
	defer m.Close()

	m.Open(context.Background())
	waitFor(t, "first failure", func() bool { return m.Stats().ReconnectPending })

	// Explicit open dials now instead of waiting an hour
	m.Open(context.Background())
	waitFor(t, "second failure", func() bool { return m.Stats().Attempt == 2 })

	if got := dials.Load(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
	if !m.Stats().ReconnectPending {
		t.Error("expected a pending reconnect after second failure")
	}
}

func TestManager_OpenIdempotent(t *testing.T) {
	rs, url, stop := newRecordingServer(t, keepOpen)
	defer stop()

	m := NewManager(testManagerConfig(url), nil)
	m.Open(context.Background())
	m.Open(context.Background())
	defer m.Close()

	waitFor(t, "open", func() bool { return m.State() == Open })
	m.Open(context.Background())
	time.Sleep(50 * time.Millisecond)

	if n := rs.connCount(); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	_, url, stop := newRecordingServer(t, keepOpen)
	defer stop()

	m := NewManager(testManagerConfig(url), nil)
	m.Close()

	m.Open(context.Background())
	waitFor(t, "open", func() bool { return m.State() == Open })

	m.Close()
	m.Close()

	if s := m.State(); s != Closed {
		t.Errorf("State = %v, want closed", s)
	}

	// Reopen after Close
	m.Open(context.Background())
	waitFor(t, "reopen", func() bool { return m.State() == Open })
	m.Close()
}

func TestManager_SendDoesNotWaitOnSocket(t *testing.T) {
	gate := make(chan struct{})
	release := sync.OnceFunc(func() { close(gate) })
	fc := newFakeClient(nil)
	fc.sendGate = gate

	m := NewManager(testManagerConfig("ws://unused"), nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client { return fc }
	m.Open(context.Background())
	defer m.Close()
	defer release()

	waitFor(t, "open", func() bool { return m.State() == Open })

	// The writer is now stuck on the first request; callers must not be.
	start := time.Now()
	m.Send(SubscribeRequest("BTC-USDT"))
	m.Send(SubscribeRequest("ETH-USDT"))
	_ = m.State()
	stats := m.Stats()
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("Send/State/Stats took %v with a stalled write", elapsed)
	}
	if stats.State != Open {
		t.Errorf("State = %v, want open", stats.State)
	}
	if stats.Queued != 0 {
		t.Errorf("Queued = %d, want 0 while open", stats.Queued)
	}

	release()
	waitFor(t, "writes", func() bool { return len(fc.requests()) == 2 })

	got := fc.requests()
	if got[0].Args[0].InstID != "BTC-USDT" || got[1].Args[0].InstID != "ETH-USDT" {
		t.Errorf("write order = %+v", got)
	}
	if p := m.Stats().Pending; p != 0 {
		t.Errorf("Pending = %d, want 0", p)
	}
}

func TestManager_FailedWriteRequeued(t *testing.T) {
	cfg := testManagerConfig("ws://unused")
	cfg.InitialReconnectDelay = time.Hour

	gate := make(chan struct{})
	release := sync.OnceFunc(func() { close(gate) })
	fc := newFakeClient(nil)
	fc.sendGate = gate
	fc.sendErr = errors.New("broken pipe")

	m := NewManager(cfg, nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client { return fc }
	m.Open(context.Background())
	defer m.Close()
	defer release()

	waitFor(t, "open", func() bool { return m.State() == Open })

	m.Send(SubscribeRequest("BTC-USDT"))
	m.ping()
	m.Send(UnsubscribeRequest("ETH-USDT"))
	release()

	waitFor(t, "drop", func() bool { return m.State() == Closed })

	m.mu.Lock()
	var queued []Request
	m.queue.Flush(func(req Request) error {
		queued = append(queued, req)
		return nil
	})
	pending := m.retry.pending()
	m.mu.Unlock()

	if len(queued) != 2 {
		t.Fatalf("queued = %+v, want 2 requests without the ping", queued)
	}
	if queued[0].Op != OpSubscribe || queued[0].Args[0].InstID != "BTC-USDT" {
		t.Errorf("queued[0] = %+v", queued[0])
	}
	if queued[1].Op != OpUnsubscribe || queued[1].Args[0].InstID != "ETH-USDT" {
		t.Errorf("queued[1] = %+v", queued[1])
	}
	if !pending {
		t.Error("expected a pending reconnect after write failure")
	}
}

func TestManager_TicksBeforeReadErrorDelivered(t *testing.T) {
	cfg := testManagerConfig("ws://unused")
	cfg.InitialReconnectDelay = time.Hour

	first := newFakeClient(nil)
	for i := 0; i < 5; i++ {
		frame := fmt.Sprintf(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","last":"%d","ts":"1700000000000"}]}`, 100+i)
		first.messages <- TimestampedMessage{Data: []byte(frame), ReceivedAt: time.Now()}
	}
	first.errors <- errors.New("connection reset")

	var mu sync.Mutex
	var got []float64

	m := NewManager(cfg, nil)
	m.newClient = func(ClientConfig, *slog.Logger) Client { return first }
	m.SetTickHandler(func(tk Tick) {
		mu.Lock()
		got = append(got, tk.Last)
		mu.Unlock()
	})
	m.Open(context.Background())
	defer m.Close()

	waitFor(t, "drop", func() bool { return m.Stats().ReconnectPending })

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("ticks = %v, want 5", got)
	}
	for i, last := range got {
		if last != float64(100+i) {
			t.Errorf("tick %d = %v, want %d", i, last, 100+i)
		}
	}
}

func TestRetryState_Delay(t *testing.T) {
	cfg := DefaultManagerConfig()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1500 * time.Millisecond},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		r := retryState{attempt: tt.attempt}
		if got := r.delay(cfg); got != tt.want {
			t.Errorf("delay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
