// Package session is the pairing-and-transfer client.
//
// One goroutine (Run) owns every piece of mutable state. Socket events, timers, retry
// workers and user commands are all posted to it as closures, so handlers never run
// concurrently. Each socket gets a new generation number. Events and timers of an older
// generation are dropped when they reach the loop.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moyoez/pairdrop-go/backoff"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
	"github.com/moyoez/pairdrop-go/wsconn"
)

const queueSize = 64

type Config struct {
	Endpoint        string
	ConnectTimeout  time.Duration
	TransferTimeout time.Duration
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxFileSize     int64
}

func ConfigFromApp(app types.AppConfig) Config {
	return Config{
		Endpoint:        app.Endpoint,
		ConnectTimeout:  tool.Millis(app.ConnectTimeoutMs),
		TransferTimeout: tool.Millis(app.TransferTimeoutMs),
		MaxAttempts:     app.MaxAttempts,
		InitialDelay:    tool.Millis(app.InitialDelayMs),
		MaxFileSize:     app.MaxFileSizeBytes,
	}
}

func (cfg Config) policy(name string) backoff.Policy {
	return backoff.Policy{Name: name, MaxAttempts: cfg.MaxAttempts, InitialDelay: cfg.InitialDelay}
}

// Snapshot is a consistent copy of the client state taken between two handlers.
type Snapshot struct {
	State     State           `json:"state"`
	Error     string          `json:"error,omitempty"`
	SessionId string          `json:"sessionId,omitempty"`
	Code      string          `json:"code,omitempty"`
	Progress  int             `json:"progress"`
	FileId    string          `json:"fileId,omitempty"`
	File      *types.FileInfo `json:"file,omitempty"`
	Connected bool            `json:"connected"`
}

// Observer is called from the event loop after every state change. It must not block
// and must not call back into the Client synchronously.
type Observer interface {
	OnSnapshot(Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }

type Option func(*Client)

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observers = append(c.observers, o) }
}

func WithConnOptions(opts ...wsconn.Option) Option {
	return func(c *Client) { c.connOpts = append(c.connOpts, opts...) }
}

type Client struct {
	cfg       Config
	conns     *wsconn.Manager
	connOpts  []wsconn.Option
	observers []Observer

	queue     chan func()
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool

	// owned by the loop
	ctx       context.Context
	state     State
	errMsg    string
	code      string
	token     string
	endpoint  string
	sessionId string
	pending   *pendingFile
	progress  int
	fileId    string
	gen       uint64
	conn      *wsconn.Handle
	attempt   *attempt
	run       *run
	runSeq    uint64

	snapMu sync.RWMutex
	snap   Snapshot
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		queue:   make(chan func(), queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateInput,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.MaxFileSize <= 0 {
		c.cfg.MaxFileSize = tool.DefaultMaxFileSize
	}
	if c.cfg.Endpoint == "" {
		c.cfg.Endpoint = tool.DefaultEndpoint
	}
	c.conns = wsconn.NewManager(func(ev wsconn.Event) {
		c.post(func() { c.handleEvent(ev) })
	}, c.connOpts...)
	c.snap = Snapshot{State: StateInput}
	return c
}

// Run is the event loop. It returns when ctx ends or Close is called and tears down
// the socket, timers and retries on the way out.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	defer close(c.done)
	c.ctx = ctx
	defer c.teardown()

	for {
		select {
		case fn := <-c.queue:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closing:
			return nil
		}
	}
}

// Close stops the loop and waits for it to finish. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
	if c.started.Load() {
		<-c.done
	}
}

// Done is closed once Run has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) post(fn func()) bool {
	select {
	case <-c.closing:
		return false
	case <-c.done:
		return false
	default:
	}
	select {
	case c.queue <- fn:
		return true
	case <-c.closing:
		return false
	case <-c.done:
		return false
	}
}

// do runs fn on the loop and waits for its result.
func (c *Client) do(fn func() error) error {
	reply := make(chan error, 1)
	if !c.post(func() { reply <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (c *Client) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

func (c *Client) publish() {
	s := Snapshot{
		State:     c.state,
		Error:     c.errMsg,
		SessionId: c.sessionId,
		Code:      c.code,
		Progress:  c.progress,
		FileId:    c.fileId,
		File:      c.pending.info(),
		Connected: c.conn.IsOpen(),
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
	for _, o := range c.observers {
		o.OnSnapshot(s)
	}
}

// transition applies t and reports whether it was legal. Illegal triggers are logged and ignored.
func (c *Client) transition(t Trigger) bool {
	next, ok := Next(c.state, t)
	if !ok {
		tool.DefaultLogger.Debugf("Ignoring %s in state %s", t, c.state)
		return false
	}
	if next != c.state {
		tool.DefaultLogger.Debugf("State %s -> %s (%s)", c.state, next, t)
	}
	c.state = next
	return true
}

// dropConnection closes the current socket and bumps the generation so its late
// events and timers become no-ops.
func (c *Client) dropConnection() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
}

func (c *Client) cancelRun() {
	if c.run != nil {
		c.run.cancel()
		c.run = nil
	}
}

func (c *Client) clearSession() {
	c.sessionId = ""
	c.pending = nil
	c.progress = 0
}

func (c *Client) teardown() {
	c.cancelRun()
	c.resolveAttempt(ErrCancelled)
	c.dropConnection()
	tool.DefaultLogger.Debugf("Session client stopped")
}

// Reset returns to input from any state, cancelling retries and closing the socket.
func (c *Client) Reset() error {
	return c.do(func() error {
		c.cancelRun()
		c.resolveAttempt(ErrCancelled)
		c.dropConnection()
		c.clearSession()
		c.code, c.token, c.endpoint = "", "", ""
		c.fileId = ""
		c.errMsg = ""
		c.transition(TriggerReset)
		c.publish()
		return nil
	})
}

// Retry leaves the error state for a fresh pairing.
func (c *Client) Retry() error {
	return c.do(func() error {
		if c.state != StateError {
			return ErrWrongState
		}
		c.cancelRun()
		c.dropConnection()
		c.clearSession()
		c.fileId = ""
		c.errMsg = ""
		c.transition(TriggerRetry)
		c.publish()
		return nil
	})
}
