// Package wsconn owns the websocket connections of a pairing session.
//
// Every Handle carries the generation it was opened for. All of its events are tagged with
// that generation so the owner can drop events from a superseded handle.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moyoez/pairdrop-go/tool"
)

var ErrNotOpen = errors.New("socket is not open")

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultWriteTimeout     = 60 * time.Second
	defaultMinWriteRate     = 64 << 10 // bytes per second
	maxInboundMessageSize   = 1 << 20
)

type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventClosed // close frame or EOF from the remote side
	EventFailed // dial or transport error
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

type Event struct {
	Gen  uint64
	Kind EventKind
	Data []byte
	Err  error
}

// Sink receives every event of every handle. It is called from the handle's goroutines
// and should hand the event off quickly.
type Sink func(Event)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

type Manager struct {
	dialer       *websocket.Dialer
	sink         Sink
	writeTimeout time.Duration
	minWriteRate int
}

type Option func(*Manager)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.dialer.HandshakeTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) { m.writeTimeout = d }
}

// WithMinWriteRate extends the write deadline of large frames by len/bytesPerSecond.
// Zero or less keeps the flat write timeout.
func WithMinWriteRate(bytesPerSecond int) Option {
	return func(m *Manager) { m.minWriteRate = bytesPerSecond }
}

func NewManager(sink Sink, opts ...Option) *Manager {
	m := &Manager{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		sink:         sink,
		writeTimeout: defaultWriteTimeout,
		minWriteRate: defaultMinWriteRate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// writeBudget is how long a frame of n bytes may take to write. Zero means no deadline.
func (m *Manager) writeBudget(n int) time.Duration {
	if m.writeTimeout <= 0 {
		return 0
	}
	d := m.writeTimeout
	if m.minWriteRate > 0 {
		d += time.Duration(n) * time.Second / time.Duration(m.minWriteRate)
	}
	return d
}

// Open starts dialing url in the background and returns immediately.
// The outcome arrives on the sink as EventOpened or EventFailed.
func (m *Manager) Open(gen uint64, url string) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		gen:     gen,
		url:     url,
		manager: m,
		cancel:  cancel,
	}
	h.state.Store(int32(StateConnecting))
	go h.run(ctx)
	return h
}

// Handle is one physical socket. Closing it never emits an event.
type Handle struct {
	gen     uint64
	url     string
	manager *Manager
	cancel  context.CancelFunc
	state   atomic.Int32

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (h *Handle) Gen() uint64 {
	return h.gen
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) IsOpen() bool {
	return h != nil && h.State() == StateOpen
}

func (h *Handle) Closed() bool {
	return h == nil || h.State() == StateClosed
}

func (h *Handle) emit(kind EventKind, data []byte, err error) {
	if h.Closed() && kind != EventClosed && kind != EventFailed {
		return
	}
	h.manager.sink(Event{Gen: h.gen, Kind: kind, Data: data, Err: err})
}

func (h *Handle) run(ctx context.Context) {
	conn, resp, err := h.manager.dialer.DialContext(ctx, h.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if !h.markClosed() {
			return
		}
		tool.DefaultLogger.Warnf("[Conn] gen %d dial failed: %v", h.gen, err)
		h.emit(EventFailed, nil, fmt.Errorf("dial: %w", err))
		return
	}
	conn.SetReadLimit(maxInboundMessageSize)

	h.mu.Lock()
	if h.Closed() {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.conn = conn
	h.state.Store(int32(StateOpen))
	h.mu.Unlock()

	tool.DefaultLogger.Debugf("[Conn] gen %d opened", h.gen)
	h.emit(EventOpened, nil, nil)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !h.markClosed() {
				return // closed by us
			}
			_ = conn.Close()
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrCloseSent) {
				tool.DefaultLogger.Infof("[Conn] gen %d closed by remote: %v", h.gen, err)
				h.emit(EventClosed, nil, err)
			} else {
				tool.DefaultLogger.Warnf("[Conn] gen %d read failed: %v", h.gen, err)
				h.emit(EventFailed, nil, err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		h.emit(EventMessage, data, nil)
	}
}

// markClosed flips the handle to closed and reports whether this call did it.
func (h *Handle) markClosed() bool {
	for {
		cur := h.state.Load()
		if State(cur) == StateClosed {
			return false
		}
		if h.state.CompareAndSwap(cur, int32(StateClosed)) {
			return true
		}
	}
}

// Send writes one text frame. It fails with ErrNotOpen unless the socket is open.
// A failed write leaves the connection unusable, so the handle is closed and later
// sends fail with ErrNotOpen.
func (h *Handle) Send(data []byte) error {
	if !h.IsOpen() {
		return ErrNotOpen
	}
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if budget := h.manager.writeBudget(len(data)); budget > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(budget))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		tool.DefaultLogger.Warnf("[Conn] gen %d write of %d bytes failed: %v", h.gen, len(data), err)
		h.Close()
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close is safe on a nil, never-opened, or already closed handle.
func (h *Handle) Close() {
	if h == nil {
		return
	}
	h.closeOnce.Do(func() {
		h.markClosed()
		h.cancel()

		h.mu.Lock()
		conn := h.conn
		h.mu.Unlock()
		if conn == nil {
			return
		}
		// WriteControl may run alongside an in-flight Send
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		tool.DefaultLogger.Debugf("[Conn] gen %d closed", h.gen)
	})
}
