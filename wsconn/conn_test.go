package wsconn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// newEchoServer echoes every text frame back and closes when it receives "bye".
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func collect() (Sink, chan Event) {
	ch := make(chan Event, 16)
	return func(ev Event) { ch <- ev }, ch
}

func next(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestOpenSendReceive(t *testing.T) {
	s := newEchoServer(t)
	sink, events := collect()
	m := NewManager(sink)

	h := m.Open(7, wsURL(s))
	ev := next(t, events)
	require.Equal(t, EventOpened, ev.Kind)
	assert.Equal(t, uint64(7), ev.Gen)
	assert.True(t, h.IsOpen())

	require.NoError(t, h.Send([]byte(`{"type":"ping"}`)))
	ev = next(t, events)
	require.Equal(t, EventMessage, ev.Kind)
	assert.JSONEq(t, `{"type":"ping"}`, string(ev.Data))
	assert.Equal(t, uint64(7), ev.Gen)

	h.Close()
	assert.True(t, h.Closed())
}

func TestRemoteCloseEmitsClosed(t *testing.T) {
	s := newEchoServer(t)
	sink, events := collect()
	h := NewManager(sink).Open(1, wsURL(s))
	require.Equal(t, EventOpened, next(t, events).Kind)

	require.NoError(t, h.Send([]byte("bye")))
	ev := next(t, events)
	assert.Equal(t, EventClosed, ev.Kind)
	assert.True(t, h.Closed())
	assert.ErrorIs(t, h.Send([]byte("x")), ErrNotOpen)
}

func TestDialFailureEmitsFailed(t *testing.T) {
	sink, events := collect()
	h := NewManager(sink, WithHandshakeTimeout(time.Second)).Open(3, "ws://127.0.0.1:1/ws")
	ev := next(t, events)
	assert.Equal(t, EventFailed, ev.Kind)
	assert.Equal(t, uint64(3), ev.Gen)
	assert.Error(t, ev.Err)
	assert.True(t, h.Closed())
}

func TestCloseIsIdempotentAndSilent(t *testing.T) {
	s := newEchoServer(t)
	sink, events := collect()
	h := NewManager(sink).Open(1, wsURL(s))
	require.Equal(t, EventOpened, next(t, events).Kind)

	h.Close()
	h.Close()

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after local close: %v", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseNilAndNeverOpened(t *testing.T) {
	var h *Handle
	assert.NotPanics(t, func() { h.Close() })
	assert.True(t, h.Closed())
	assert.False(t, h.IsOpen())

	sink, _ := collect()
	// blackhole address: closing while still dialing must not emit anything
	h = NewManager(sink).Open(1, "ws://10.255.255.1:9/ws")
	assert.NotPanics(t, func() {
		h.Close()
		h.Close()
	})
	assert.ErrorIs(t, h.Send([]byte("x")), ErrNotOpen)
}

func TestWriteBudgetScalesWithSize(t *testing.T) {
	m := NewManager(func(Event) {})
	assert.Equal(t, defaultWriteTimeout, m.writeBudget(0))
	assert.Equal(t, defaultWriteTimeout+10*time.Second, m.writeBudget(10*defaultMinWriteRate))

	// a 100 MiB file base64 encoded gets well past the flat timeout
	assert.Greater(t, m.writeBudget(140<<20), 30*time.Minute)

	flat := NewManager(func(Event) {}, WithMinWriteRate(0))
	assert.Equal(t, defaultWriteTimeout, flat.writeBudget(140<<20))

	none := NewManager(func(Event) {}, WithWriteTimeout(0))
	assert.Equal(t, time.Duration(0), none.writeBudget(140<<20))
}

func TestFailedWriteClosesHandle(t *testing.T) {
	s := newEchoServer(t)
	sink, events := collect()
	m := NewManager(sink, WithWriteTimeout(time.Nanosecond), WithMinWriteRate(0))
	h := m.Open(1, wsURL(s))
	require.Equal(t, EventOpened, next(t, events).Kind)

	time.Sleep(time.Millisecond)
	err := h.Send([]byte(`{"type":"ping"}`))
	require.Error(t, err)
	assert.True(t, h.Closed())
	assert.ErrorIs(t, h.Send([]byte("x")), ErrNotOpen)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after failed write: %v", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}
