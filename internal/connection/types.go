package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyClosed  = errors.New("already closed")
	ErrMalformedFrame = errors.New("malformed frame")
)

// ChannelTickers is the only channel this feed subscribes to.
const ChannelTickers = "tickers"

// Outbound ops.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPing        = "ping"
)

// State is the lifecycle state of the managed connection.
type State int

const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Arg addresses one channel/instrument subscription.
type Arg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId,omitempty"`
}

// Request is an outbound op. Pending requests sit in the Outbound Queue.
type Request struct {
	Op   string `json:"op"`
	Args []Arg  `json:"args,omitempty"`
}

// SubscribeRequest builds a ticker subscribe for pair.
func SubscribeRequest(pair string) Request {
	return Request{Op: OpSubscribe, Args: []Arg{{Channel: ChannelTickers, InstID: pair}}}
}

// UnsubscribeRequest builds a ticker unsubscribe for pair.
func UnsubscribeRequest(pair string) Request {
	return Request{Op: OpUnsubscribe, Args: []Arg{{Channel: ChannelTickers, InstID: pair}}}
}

// PingRequest builds the keep-alive request.
func PingRequest() Request {
	return Request{Op: OpPing}
}

// Tick is a live price update extracted from a ticker push.
type Tick struct {
	Pair       string
	Last       float64
	Timestamp  int64 // Server timestamp, milliseconds since epoch
	ReceivedAt time.Time
}

// TickHandler receives parsed ticks, in arrival order.
type TickHandler func(t Tick)

// PairSource supplies the authoritative pair set used to resubscribe after
// every successful open.
type PairSource func() []string

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://ws.okx.com:8443/ws/v5/public)
	HandshakeTimeout time.Duration // Dial handshake timeout
	ReadTimeout      time.Duration // Max silence before the connection is considered stale (0 = none)
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	BufferSize       int

	InitialReconnectDelay time.Duration // Delay before the first reconnect after a close
	ReconnectBaseDelay    time.Duration // Base of the exponential backoff after failed attempts
	ReconnectMaxDelay     time.Duration // Backoff cap
	PingInterval          time.Duration // Heartbeat period
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	c := DefaultClientConfig()
	return ManagerConfig{
		URL:                   "wss://ws.okx.com:8443/ws/v5/public",
		HandshakeTimeout:      c.HandshakeTimeout,
		ReadTimeout:           c.ReadTimeout,
		WriteTimeout:          c.WriteTimeout,
		BufferSize:            c.BufferSize,
		InitialReconnectDelay: 1500 * time.Millisecond,
		ReconnectBaseDelay:    1 * time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		PingInterval:          20 * time.Second,
	}
}

func (c ManagerConfig) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		ReadTimeout:      c.ReadTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	State            State
	Session          string // Empty while not open
	Attempt          int    // Failed reconnect attempts since the last open
	ReconnectPending bool
	Queued           int // Held for the next open
	Pending          int // Accepted while open, not yet written
	Reconnects       int64
	HeartbeatRunning bool
}
