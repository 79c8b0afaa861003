package connection

import (
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrConnectTimeout is the cancellation cause when the handshake does not
// complete within Config.ConnectTimeout.
var ErrConnectTimeout = errors.New("connect timed out")

// State is the observable connection state
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Config holds configuration for the server connection
type Config struct {
	ConnectTimeout     time.Duration
	KeepAliveInterval  time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration // 0 disables the read deadline
	MaxBatch           int           // messages written per wake-up
	QueueLimit         int           // 0 means unbounded
	MaxMessageSize     int64
	ReadBufferSize     int
	WriteBufferSize    int
	InsecureSkipVerify bool
}

// DefaultConfig returns the default connection configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    5 * time.Second,
		KeepAliveInterval: 20 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		MaxBatch:          8,
		QueueLimit:        256,
		MaxMessageSize:    64 * 1024,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
	}
}

// Stats is a point-in-time view of the connection counters
type Stats struct {
	State       State
	Queued      int
	Sent        uint64
	Received    uint64
	Dropped     uint64
	WriteErrors uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// Manager owns one persistent websocket connection to the game server. A
// single service goroutine performs every write; callers only enqueue.
type Manager struct {
	config Config
	clock  clockwork.Clock
	dialer *websocket.Dialer

	handlersMu   sync.RWMutex
	onMessage    func(text string)
	onConnection func(connected bool)
	onWriteError func(err error)

	state atomic.Int32

	// Outbound queue. Never held across I/O.
	queueMu sync.Mutex
	queue   []string
	wakeCh  chan struct{}

	lifecycleMu sync.Mutex
	current     *serviceRun

	sent        atomic.Uint64
	received    atomic.Uint64
	dropped     atomic.Uint64
	writeErrors atomic.Uint64
}

type serviceRun struct {
	url      string
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (r *serviceRun) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// NewManager creates a connection manager
func NewManager(config Config, opts ...Option) *Manager {
	defaults := DefaultConfig()
	if config.MaxBatch <= 0 {
		config.MaxBatch = 1
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = defaults.KeepAliveInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	m := &Manager{
		config: config,
		clock:  clockwork.NewRealClock(),
		wakeCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.dialer = &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: config.ConnectTimeout,
		ReadBufferSize:   config.ReadBufferSize,
		WriteBufferSize:  config.WriteBufferSize,
	}
	if config.InsecureSkipVerify {
		m.dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return m
}

// OnMessage registers the callback invoked once per complete inbound message.
// Callbacks run on the connection's reader goroutine and must not call
// Disconnect.
func (m *Manager) OnMessage(fn func(text string)) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.onMessage = fn
}

// OnConnection registers the callback invoked on every transition to or from
// the connected state.
func (m *Manager) OnConnection(fn func(connected bool)) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.onConnection = fn
}

// OnWriteError registers the callback invoked when a queued message could not
// be written. The connection stays open.
func (m *Manager) OnWriteError(fn func(err error)) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.onWriteError = fn
}

// Endpoint builds the websocket URL for a server address.
func Endpoint(host string, port int, path string, useTLS bool) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   path,
	}
	if useTLS {
		u.Scheme = "wss"
	}
	return u.String()
}

// Connect starts the service goroutine for a new connection. It returns once
// the goroutine is running, before the handshake completes; IsConnected and
// State report the outcome. It returns false if a connection is already active.
func (m *Manager) Connect(host string, port int, path string, useTLS bool) bool {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.current != nil {
		select {
		case <-m.current.done:
		default:
			log.Warn().Str("url", m.current.url).Msg("connect requested while a connection is active")
			return false
		}
	}

	run := &serviceRun{
		url:  Endpoint(host, port, path, useTLS),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	m.clearQueue()
	m.setState(StateConnecting)

	started := make(chan struct{})
	go m.serviceLoop(run, started)
	<-started

	m.current = run
	log.Info().Str("url", run.url).Msg("connecting to game server")
	return true
}

// Disconnect stops the service goroutine, waits for it to exit and releases
// the socket. Calling it more than once is harmless.
func (m *Manager) Disconnect() {
	m.lifecycleMu.Lock()
	run := m.current
	m.current = nil
	m.lifecycleMu.Unlock()

	if run == nil {
		return
	}
	run.requestStop()
	<-run.done
	m.clearQueue()
	m.setState(StateDisconnected)
	log.Info().Str("url", run.url).Msg("disconnected from game server")
}

// Done returns a channel closed when the current service goroutine exits. It
// returns a closed channel when no connection was started.
func (m *Manager) Done() <-chan struct{} {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.current.done
}

// IsConnected reports whether the handshake completed and the connection is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current connection state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// SendMessage queues text for transmission. It fails when not connected or
// when the queue is full, and never blocks on network I/O.
func (m *Manager) SendMessage(text string) bool {
	if !m.IsConnected() {
		log.Debug().Msg("send rejected: not connected")
		return false
	}

	m.queueMu.Lock()
	if m.config.QueueLimit > 0 && len(m.queue) >= m.config.QueueLimit {
		m.queueMu.Unlock()
		m.dropped.Add(1)
		log.Warn().Int("queue_limit", m.config.QueueLimit).Msg("outbound queue full, dropping message")
		return false
	}
	m.queue = append(m.queue, text)
	m.queueMu.Unlock()

	m.wake()
	return true
}

// Stats returns the connection counters
func (m *Manager) Stats() Stats {
	m.queueMu.Lock()
	queued := len(m.queue)
	m.queueMu.Unlock()

	return Stats{
		State:       m.State(),
		Queued:      queued,
		Sent:        m.sent.Load(),
		Received:    m.received.Load(),
		Dropped:     m.dropped.Load(),
		WriteErrors: m.writeErrors.Load(),
	}
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) wake() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

func (m *Manager) clearQueue() {
	m.queueMu.Lock()
	m.queue = nil
	m.queueMu.Unlock()
}

// dequeue removes up to n messages from the head of the queue.
func (m *Manager) dequeue(n int) ([]string, int) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	if n > len(m.queue) {
		n = len(m.queue)
	}
	batch := make([]string, n)
	copy(batch, m.queue[:n])
	rest := copy(m.queue, m.queue[n:])
	clear(m.queue[rest:])
	m.queue = m.queue[:rest]
	return batch, rest
}

func (m *Manager) notifyConnection(connected bool) {
	m.handlersMu.RLock()
	fn := m.onConnection
	m.handlersMu.RUnlock()
	if fn != nil {
		fn(connected)
	}
}

func (m *Manager) notifyMessage(text string) {
	m.handlersMu.RLock()
	fn := m.onMessage
	m.handlersMu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

func (m *Manager) notifyWriteError(err error) {
	m.handlersMu.RLock()
	fn := m.onWriteError
	m.handlersMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
