package session

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/pairdrop-go/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// peer is one accepted socket on the fake service.
type peer struct {
	conn  *websocket.Conn
	mu    sync.Mutex
	query url.Values
}

func (p *peer) send(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteJSON(v)
}

func (p *peer) sendLater(d time.Duration, v any) {
	time.AfterFunc(d, func() { p.send(v) })
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.Close()
}

// fakeService is a scripted desktop service.
type fakeService struct {
	srv *httptest.Server

	onJoin   func(p *peer, n int, msg types.JoinSessionMessage)
	onUpload func(p *peer, n int, msg types.FileUploadMessage)

	mu      sync.Mutex
	peers   []*peer
	joins   []types.JoinSessionMessage
	uploads []types.FileUploadMessage
	dials   atomic.Int32
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	fs := &fakeService{}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeService) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/ws/transfer"
}

func (fs *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fs.dials.Add(1)
	p := &peer{conn: conn, query: r.URL.Query()}
	fs.mu.Lock()
	fs.peers = append(fs.peers, p)
	fs.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var head struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &head) != nil {
			continue
		}
		switch head.Type {
		case types.MessageTypeJoinSession:
			var msg types.JoinSessionMessage
			_ = json.Unmarshal(data, &msg)
			fs.mu.Lock()
			fs.joins = append(fs.joins, msg)
			n, cb := len(fs.joins), fs.onJoin
			fs.mu.Unlock()
			if cb != nil {
				cb(p, n, msg)
			}
		case types.MessageTypeFileUpload:
			var msg types.FileUploadMessage
			_ = json.Unmarshal(data, &msg)
			fs.mu.Lock()
			fs.uploads = append(fs.uploads, msg)
			n, cb := len(fs.uploads), fs.onUpload
			fs.mu.Unlock()
			if cb != nil {
				cb(p, n, msg)
			}
		}
	}
}

func (fs *fakeService) setJoin(fn func(p *peer, n int, msg types.JoinSessionMessage)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.onJoin = fn
}

func (fs *fakeService) setUpload(fn func(p *peer, n int, msg types.FileUploadMessage)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.onUpload = fn
}

func (fs *fakeService) joinCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.joins)
}

func (fs *fakeService) joinAt(i int) types.JoinSessionMessage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.joins[i]
}

func (fs *fakeService) uploadList() []types.FileUploadMessage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]types.FileUploadMessage(nil), fs.uploads...)
}

func (fs *fakeService) lastPeer() *peer {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.peers) == 0 {
		return nil
	}
	return fs.peers[len(fs.peers)-1]
}

func joined(sessionId string) map[string]any {
	return map[string]any{"type": types.MessageTypeSessionJoined, "sessionId": sessionId}
}

func uploaded(fileId string) map[string]any {
	return map[string]any{"type": types.MessageTypeFileUploaded, "fileId": fileId}
}

func serverError(typ, message string) map[string]any {
	return map[string]any{"type": typ, "message": message}
}

// memFile is an in-memory File that counts how often it was opened.
type memFile struct {
	name   string
	mime   string
	data   []byte
	size   int64
	opened atomic.Int32
}

func (f *memFile) Name() string     { return f.name }
func (f *memFile) MimeType() string { return f.mime }

func (f *memFile) Size() int64 {
	if f.size > 0 {
		return f.size
	}
	return int64(len(f.data))
}

func (f *memFile) Open() (io.ReadCloser, error) {
	f.opened.Add(1)
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// recorder keeps every published snapshot.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) OnSnapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:        endpoint,
		ConnectTimeout:  time.Second,
		TransferTimeout: time.Second,
		MaxAttempts:     3,
		InitialDelay:    10 * time.Millisecond,
		MaxFileSize:     1 << 20,
	}
}

func startClient(t *testing.T, cfg Config) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := NewClient(cfg, WithObserver(rec))
	go func() { _ = c.Run(t.Context()) }()
	t.Cleanup(c.Close)
	return c, rec
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State == want
	}, 3*time.Second, 5*time.Millisecond, "state never became %s (last %+v)", want, c.Snapshot())
}

// pairClient drives a fresh client to connected against fs.
func pairClient(t *testing.T, fs *fakeService, cfg Config) (*Client, *recorder) {
	t.Helper()
	fs.mu.Lock()
	if fs.onJoin == nil {
		fs.onJoin = func(p *peer, n int, msg types.JoinSessionMessage) { p.send(joined("abc")) }
	}
	fs.mu.Unlock()
	c, rec := startClient(t, cfg)
	require.NoError(t, c.SubmitCode("123456", ""))
	waitState(t, c, StateConnected)
	return c, rec
}
