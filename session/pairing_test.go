package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/pairdrop-go/types"
)

func TestSubmitCodeRejectsInvalidFormat(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig(fs.url()))

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		err := c.SubmitCode(code, "")
		assert.ErrorIs(t, err, ErrInvalidCodeFormat, "code %q", code)
		assert.Equal(t, StateInput, c.Snapshot().State)
	}
	assert.Equal(t, "Please enter a 6-digit code.", c.Snapshot().Error)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fs.dials.Load())
}

func TestPairingJoinsSession(t *testing.T) {
	fs := newFakeService(t)
	c, rec := pairClient(t, fs, testConfig(fs.url()))

	snap := c.Snapshot()
	assert.Equal(t, "abc", snap.SessionId)
	assert.Equal(t, "123456", snap.Code)
	assert.True(t, snap.Connected)
	assert.Empty(t, snap.Error)

	require.Equal(t, 1, fs.joinCount())
	join := fs.joinAt(0)
	assert.Equal(t, "123456", join.Code)
	assert.Equal(t, types.ConnectionTypeMobile, join.ConnectionType)
	assert.Empty(t, join.Token)
	assert.Empty(t, fs.lastPeer().query.Get("token"))

	states := []State{}
	for _, s := range rec.all() {
		if len(states) == 0 || states[len(states)-1] != s.State {
			states = append(states, s.State)
		}
	}
	assert.Equal(t, []State{StateValidating, StateConnected}, states)
}

func TestPairingSendsToken(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig(fs.url()))
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) { p.send(joined("tok")) })

	require.NoError(t, c.SubmitCode(" 654321 ", "secret token"))
	waitState(t, c, StateConnected)

	assert.Equal(t, "secret token", fs.lastPeer().query.Get("token"))
	assert.Equal(t, "secret token", fs.joinAt(0).Token)
	assert.Equal(t, "654321", fs.joinAt(0).Code)
}

func TestSubmitValidatedUsesReturnedSocket(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig("ws://127.0.0.1:1/unused"))
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) { p.send(joined("rest")) })

	require.NoError(t, c.SubmitValidated("111222", types.ValidateCodeResponse{WsUrl: fs.url(), Token: "t1"}))
	waitState(t, c, StateConnected)
	assert.Equal(t, "rest", c.Snapshot().SessionId)
	assert.Equal(t, "t1", fs.lastPeer().query.Get("token"))
}

func TestConnectTimeoutClosesSocketAndDropsLateJoin(t *testing.T) {
	fs := newFakeService(t)
	cfg := testConfig(fs.url())
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.MaxAttempts = 1
	c, _ := startClient(t, cfg)
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		p.sendLater(150*time.Millisecond, joined("late"))
	})

	require.NoError(t, c.SubmitCode("123456", ""))
	waitState(t, c, StateInput)
	assert.Equal(t, "Connection timeout", c.Snapshot().Error)

	time.Sleep(250 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, StateInput, snap.State)
	assert.Empty(t, snap.SessionId)
	assert.False(t, snap.Connected)
}

func TestPairingRetriesOnServerError(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig(fs.url()))
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		if n == 1 {
			p.send(serverError(types.MessageTypeError, "try later"))
			return
		}
		p.send(joined("second"))
	})

	require.NoError(t, c.SubmitCode("123456", ""))
	waitState(t, c, StateConnected)
	assert.Equal(t, "second", c.Snapshot().SessionId)
	assert.Equal(t, int32(2), fs.dials.Load(), "each attempt dials a new socket")
}

func TestPairingExhaustedFallsBackToInput(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig(fs.url()))
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		p.send(serverError(types.MessageTypeError, "Code expired"))
	})

	require.NoError(t, c.SubmitCode("123456", ""))
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StateInput && s.Error != ""
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Code expired", c.Snapshot().Error)
	assert.Equal(t, 3, fs.joinCount())
}

func TestPairingRemoteCloseFailsAttempt(t *testing.T) {
	fs := newFakeService(t)
	cfg := testConfig(fs.url())
	cfg.MaxAttempts = 1
	c, _ := startClient(t, cfg)
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) { p.close() })

	require.NoError(t, c.SubmitCode("123456", ""))
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StateInput && s.Error != ""
	}, 3*time.Second, 5*time.Millisecond)
	assert.Contains(t, []string{"Connection closed", "Connection failed"}, c.Snapshot().Error)
}

func TestResetMidRetryStopsAttempts(t *testing.T) {
	fs := newFakeService(t)
	cfg := testConfig(fs.url())
	cfg.InitialDelay = 100 * time.Millisecond
	c, _ := startClient(t, cfg)
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		p.send(serverError(types.MessageTypeError, "nope"))
	})

	require.NoError(t, c.SubmitCode("123456", ""))
	require.Eventually(t, func() bool { return fs.joinCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Reset())
	require.NoError(t, c.Reset())
	snap := c.Snapshot()
	assert.Equal(t, StateInput, snap.State)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Code)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, fs.joinCount())
	assert.Equal(t, StateInput, c.Snapshot().State)
}

func TestForegroundReconnectsDeadSocket(t *testing.T) {
	fs := newFakeService(t)
	c, _ := pairClient(t, fs, testConfig(fs.url()))

	// an alive socket is left alone
	c.Foreground()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fs.dials.Load())

	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) { p.send(joined("again")) })
	fs.lastPeer().close()
	require.Eventually(t, func() bool { return !c.Snapshot().Connected }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConnected, c.Snapshot().State)

	c.Foreground()
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.SessionId == "again" && s.Connected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConnected, c.Snapshot().State)
	assert.Equal(t, "123456", fs.joinAt(1).Code)
}

func TestForegroundReconnectFailureReturnsToInput(t *testing.T) {
	fs := newFakeService(t)
	c, _ := pairClient(t, fs, testConfig(fs.url()))

	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		p.send(serverError(types.MessageTypeError, "Session ended"))
	})
	fs.lastPeer().close()
	require.Eventually(t, func() bool { return !c.Snapshot().Connected }, 2*time.Second, 5*time.Millisecond)

	c.Foreground()
	waitState(t, c, StateInput)
	snap := c.Snapshot()
	assert.Equal(t, "Session ended", snap.Error)
	assert.Empty(t, snap.SessionId)
	assert.Equal(t, 2, fs.joinCount(), "reconnect is a single attempt")
}

func TestUnknownMessageIgnored(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig(fs.url()))
	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		p.send(map[string]any{"type": "desktop_typing"})
		p.send(joined("abc"))
	})

	require.NoError(t, c.SubmitCode("123456", ""))
	waitState(t, c, StateConnected)
}

func TestCommandsAfterClose(t *testing.T) {
	fs := newFakeService(t)
	c, _ := startClient(t, testConfig(fs.url()))
	require.NoError(t, c.Reset())
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.SubmitCode("123456", ""), ErrClosed)
	assert.ErrorIs(t, c.Reset(), ErrClosed)
}

func TestSendWaitsForRejoin(t *testing.T) {
	fs := newFakeService(t)
	c, _ := pairClient(t, fs, testConfig(fs.url()))
	chooseAndWait(t, c, &memFile{name: "report.pdf", mime: "application/pdf", data: []byte("%PDF-1.4")})

	fs.setJoin(func(p *peer, n int, msg types.JoinSessionMessage) {
		p.sendLater(300*time.Millisecond, joined("again"))
	})
	fs.setUpload(func(p *peer, n int, msg types.FileUploadMessage) { p.send(uploaded(msg.FileId)) })
	fs.lastPeer().close()
	require.Eventually(t, func() bool { return !c.Snapshot().Connected }, 2*time.Second, 5*time.Millisecond)

	c.Foreground()
	require.Eventually(t, func() bool { return fs.joinCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	// the new socket is open but the service has not confirmed the session yet
	assert.ErrorIs(t, c.Send(), ErrNotReady)
	snap := c.Snapshot()
	assert.Equal(t, StateFileSelection, snap.State)
	assert.Equal(t, "abc", snap.SessionId)
	assert.Empty(t, fs.uploadList())

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.SessionId == "again" && s.Connected
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Send())
	waitState(t, c, StateCompleted)

	uploads := fs.uploadList()
	require.Len(t, uploads, 1)
	assert.Equal(t, "again", uploads[0].SessionId)
}
