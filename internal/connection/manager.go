package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxBackoffShift bounds 2^attempt so the delay cannot overflow.
const maxBackoffShift = 30

// Manager owns the single stream connection and its reconnect cycle.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	onTick TickHandler
	pairs  PairSource

	newClient func(ClientConfig, *slog.Logger) Client

	queue     *Queue
	heartbeat *Heartbeat

	mu         sync.Mutex
	state      State
	client     Client
	outbox     *outbox // Writes for client, nil while not open
	session    string
	retry      retryState
	stopped    bool
	reconnects int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// retryState is the reconnect state machine. At most one timer is pending;
// seq identifies it so a timer that fired late cannot act twice.
type retryState struct {
	attempt int
	timer   *time.Timer
	seq     uint64
}

func (r *retryState) pending() bool {
	return r.timer != nil
}

func (r *retryState) cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// delay returns the wait before the next reconnect: the initial delay after a
// clean close, exponential backoff after failed attempts.
func (r *retryState) delay(cfg ManagerConfig) time.Duration {
	if r.attempt == 0 {
		return cfg.InitialReconnectDelay
	}

	shift := r.attempt
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := cfg.ReconnectBaseDelay * time.Duration(1<<shift)
	if d > cfg.ReconnectMaxDelay || d <= 0 {
		d = cfg.ReconnectMaxDelay
	}
	return d
}

// NewManager creates a Connection Manager in the Closed state.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		queue:     NewQueue(),
		heartbeat: NewHeartbeat(cfg.PingInterval),
	}
}

// SetTickHandler sets the receiver of parsed ticks. Call before Open.
func (m *Manager) SetTickHandler(h TickHandler) {
	m.mu.Lock()
	m.onTick = h
	m.mu.Unlock()
}

// SetPairSource sets the pair set replayed as subscribes on every open. Call before Open.
func (m *Manager) SetPairSource(p PairSource) {
	m.mu.Lock()
	m.pairs = p
	m.mu.Unlock()
}

// Open starts connecting. It is a no-op while open or connecting; a pending
// reconnect timer is cancelled and the dial happens now.
func (m *Manager) Open(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Closed {
		return
	}

	if m.ctx == nil || m.ctx.Err() != nil {
		m.ctx, m.cancel = context.WithCancel(ctx)
	}
	m.stopped = false
	m.retry.cancel()

	m.beginConnectLocked()
}

// Close tears down the connection and cancels the heartbeat and any pending
// reconnect. Safe to call repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopped = true
	m.retry.cancel()
	m.retry.attempt = 0
	m.heartbeat.Stop()

	c := m.client
	m.client = nil
	m.session = ""
	m.state = Closed
	m.releaseOutboxLocked()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		c.Close()
	}

	m.wg.Wait()
}

// Send hands req to the open connection's writer, otherwise queues it for the
// next open. It never waits on the socket. A request whose write fails is
// re-queued and the connection is dropped.
func (m *Manager) Send(req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Open || m.outbox == nil {
		m.queue.Enqueue(req)
		return
	}
	m.outbox.push(req)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := 0
	if m.outbox != nil {
		pending = m.outbox.size()
	}

	return Stats{
		State:            m.state,
		Session:          m.session,
		Attempt:          m.retry.attempt,
		ReconnectPending: m.retry.pending(),
		Queued:           m.queue.Len(),
		Pending:          pending,
		Reconnects:       m.reconnects,
		HeartbeatRunning: m.heartbeat.Running(),
	}
}

func (m *Manager) beginConnectLocked() {
	m.state = Connecting
	m.wg.Add(1)
	go m.connect(m.ctx)
}

// connect dials outside the lock, then on success flushes the queue,
// resubscribes every pair and starts the heartbeat, in that order.
func (m *Manager) connect(ctx context.Context) {
	defer m.wg.Done()

	session := uuid.NewString()
	logger := m.logger.With("session", session)
	c := m.newClient(m.cfg.clientConfig(), logger)

	err := c.Connect(ctx)

	m.mu.Lock()
	if m.stopped || ctx.Err() != nil {
		m.state = Closed
		m.mu.Unlock()
		c.Close()
		return
	}

	if err != nil {
		m.state = Closed
		m.retry.attempt++
		logger.Warn("connect failed",
			"attempt", m.retry.attempt,
			"error", err,
		)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	ob := newOutbox()
	m.client = c
	m.outbox = ob
	m.session = session
	m.state = Open
	m.retry.attempt = 0
	logger.Info("stream connected", "url", m.cfg.URL)

	m.wg.Add(2)
	go m.readLoop(c)
	go m.writeLoop(c, ob)

	// Queued requests go ahead of the resubscribes below.
	flushed, _ := m.queue.Flush(func(req Request) error {
		ob.push(req)
		return nil
	})
	if flushed > 0 {
		logger.Debug("flushed queued requests", "count", flushed)
	}
	source := m.pairs
	m.mu.Unlock()

	// The pair source takes the caller's lock, so it runs without ours.
	var pairs []string
	if source != nil {
		pairs = source()
	}
	for _, pair := range pairs {
		m.Send(SubscribeRequest(pair))
	}
	if len(pairs) > 0 {
		logger.Debug("resubscribed", "pairs", len(pairs))
	}

	m.mu.Lock()
	if m.client == c && m.state == Open {
		m.heartbeat.Start(m.ping)
	}
	m.mu.Unlock()
}

// ping sends the keep-alive only while open; pings are never queued.
func (m *Manager) ping() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Open || m.outbox == nil {
		return
	}
	m.outbox.push(PingRequest())
}

// writeLoop writes requests accepted for c in order. A failed write puts the
// request back and drops c.
func (m *Manager) writeLoop(c Client, ob *outbox) {
	defer m.wg.Done()

	for {
		select {
		case <-c.Done():
			return
		case <-ob.wake:
		}

		for {
			req, ok := ob.next()
			if !ok {
				break
			}
			if err := m.write(c, req); err != nil {
				m.mu.Lock()
				m.requeueLocked(req)
				m.dropLocked(c, fmt.Errorf("send %s: %w", req.Op, err))
				m.mu.Unlock()
				return
			}
		}
	}
}

// requeueLocked returns an unwritten request to the head of whatever will
// send it next. Pings are dropped.
func (m *Manager) requeueLocked(req Request) {
	if req.Op == OpPing {
		return
	}
	if m.state == Open && m.outbox != nil {
		m.outbox.pushFront(req)
		return
	}
	m.queue.Requeue(req)
}

// releaseOutboxLocked moves unwritten requests back to the queue, in order,
// and detaches the outbox from the manager.
func (m *Manager) releaseOutboxLocked() {
	if m.outbox == nil {
		return
	}

	var keep []Request
	for _, req := range m.outbox.takeAll() {
		if req.Op != OpPing {
			keep = append(keep, req)
		}
	}
	m.queue.Requeue(keep...)
	m.outbox = nil
}

func (m *Manager) write(c Client, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", req.Op, err)
	}
	return c.Send(data)
}

// dropLocked handles the loss of c. Events for a connection that is no longer
// current are ignored.
func (m *Manager) dropLocked(c Client, cause error) {
	if m.client != c {
		return
	}

	m.heartbeat.Stop()
	m.client = nil
	m.state = Closed
	m.releaseOutboxLocked()
	c.Close()

	if m.stopped {
		return
	}

	m.logger.Warn("stream connection lost",
		"session", m.session,
		"error", cause,
	)
	m.session = ""
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer unless one is already pending.
func (m *Manager) scheduleReconnectLocked() {
	if m.retry.pending() {
		return
	}

	delay := m.retry.delay(m.cfg)
	m.retry.seq++
	seq := m.retry.seq
	m.retry.timer = time.AfterFunc(delay, func() {
		m.reconnect(seq)
	})

	m.logger.Info("reconnect scheduled",
		"delay", delay,
		"attempt", m.retry.attempt,
	)
}

// reconnect is the only timer-driven entry into Connecting.
func (m *Manager) reconnect(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.retry.seq || m.retry.timer == nil {
		return
	}
	m.retry.timer = nil

	if m.stopped || m.state != Closed {
		return
	}

	m.reconnects++
	m.beginConnectLocked()
}

// readLoop consumes frames from c until it fails or is closed.
func (m *Manager) readLoop(c Client) {
	defer m.wg.Done()

	for {
		select {
		case <-c.Done():
			return

		case err := <-c.Errors():
			// Ticks read before the failure are still valid.
			m.drainMessages(c)

			m.mu.Lock()
			m.dropLocked(c, err)
			m.mu.Unlock()
			return

		case msg := <-c.Messages():
			m.handleMessage(msg)
		}
	}
}

// drainMessages handles whatever c buffered without waiting for more.
func (m *Manager) drainMessages(c Client) {
	for {
		select {
		case msg := <-c.Messages():
			m.handleMessage(msg)
		default:
			return
		}
	}
}

func (m *Manager) handleMessage(msg TimestampedMessage) {
	frame, err := ParseFrame(msg.Data)
	if err != nil {
		m.logger.Debug("dropping frame", "error", err)
		return
	}

	switch frame.Kind {
	case FrameTicker:
		m.mu.Lock()
		handler := m.onTick
		m.mu.Unlock()
		if handler == nil {
			return
		}
		for _, t := range frame.Ticks {
			t.ReceivedAt = msg.ReceivedAt
			handler(t)
		}

	case FrameError:
		m.logger.Warn("stream error",
			"code", frame.Code,
			"msg", frame.Message,
		)

	case FrameSubscribed, FrameUnsubscribed:
		m.logger.Debug("subscription ack",
			"kind", frame.Kind.String(),
			"pair", frame.Arg.InstID,
		)

	case FramePong:
		// keep-alive reply

	default:
		m.logger.Debug("ignoring frame", "bytes", len(msg.Data))
	}
}
