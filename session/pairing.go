package session

import (
	"context"
	"errors"
	"strings"

	"github.com/moyoez/pairdrop-go/backoff"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
	"github.com/moyoez/pairdrop-go/wsconn"
)

// SubmitCode starts pairing with a six digit code and an optional bearer token.
// Anything but exactly six digits is rejected without opening a socket.
func (c *Client) SubmitCode(code, token string) error {
	return c.submit(code, token, "")
}

// SubmitValidated pairs using the socket URL and token returned by the REST validate call.
func (c *Client) SubmitValidated(code string, v types.ValidateCodeResponse) error {
	return c.submit(code, v.Token, v.WsUrl)
}

func (c *Client) submit(code, token, endpoint string) error {
	code = strings.TrimSpace(code)
	return c.do(func() error {
		if c.state != StateInput {
			return ErrWrongState
		}
		if !tool.IsValidCode(code) {
			c.errMsg = UserMessage(ErrInvalidCodeFormat)
			c.publish()
			return ErrInvalidCodeFormat
		}
		c.code, c.token, c.endpoint = code, strings.TrimSpace(token), endpoint
		c.errMsg = ""
		c.transition(TriggerSubmitCode)
		tool.DefaultLogger.Infof("[Pair] Joining session with code %s", code)
		c.publish()
		c.startPairing(runPair)
		return nil
	})
}

// Foreground is called when the app returns to the foreground. A paired session whose
// socket died in the background is re-joined with the last code.
func (c *Client) Foreground() {
	c.post(func() {
		if !c.state.Paired() {
			return
		}
		if !c.conn.Closed() || c.run != nil {
			return
		}
		tool.DefaultLogger.Infof("[Lifecycle] Socket closed while %s, reconnecting", c.state)
		c.startPairing(runReconnect)
	})
}

func (c *Client) socketURL() string {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = c.cfg.Endpoint
	}
	return tool.BuildSocketURL(endpoint, c.token)
}

// startPairing runs the open-and-join sequence in a retry envelope. Each attempt dials a new socket.
func (c *Client) startPairing(kind runKind) {
	r := c.newRun(kind)
	url := c.socketURL()
	join, err := encodeJoin(c.code, c.token)
	if err != nil {
		c.cancelRun()
		c.failPairing(kind, err)
		return
	}
	policy := c.cfg.policy("Pair")
	if kind == runReconnect {
		// best effort, outside the retry envelope
		policy.MaxAttempts = 1
	}

	go func() {
		_, err := backoff.Retry(r.ctx, policy, func(ctx context.Context, a backoff.Attempt) (struct{}, error) {
			result := make(chan error, 1)
			if !c.post(func() { c.beginPairAttempt(ctx, a, url, join, result) }) {
				return struct{}{}, backoff.Permanent(ErrClosed)
			}
			return struct{}{}, permanentIfFatal(await(ctx, result))
		})
		c.post(func() { c.finishPairing(r, err) })
	}()
}

func (c *Client) beginPairAttempt(ctx context.Context, a backoff.Attempt, url string, join []byte, result chan error) {
	if err := ctx.Err(); err != nil {
		result <- err
		return
	}
	c.resolveAttempt(ErrCancelled)
	c.dropConnection()

	at := newAttempt(attemptPair, c.gen, result)
	at.join = join
	c.attempt = at
	c.conn = c.conns.Open(c.gen, url)
	c.arm(at, c.cfg.ConnectTimeout, func() {
		tool.DefaultLogger.Warnf("[Pair] No session_joined within %s, closing socket", c.cfg.ConnectTimeout)
		c.dropConnection()
		c.resolveAttempt(ErrConnectionTimeout)
	})
	tool.DefaultLogger.Debugf("[Pair] Attempt %d dialing (gen %d)", a.Number, c.gen)
}

func (c *Client) finishPairing(r *run, err error) {
	if c.run != r {
		return
	}
	c.run = nil
	if err == nil {
		return
	}
	c.failPairing(r.kind, err)
}

func (c *Client) failPairing(kind runKind, err error) {
	if errors.Is(err, ErrClosed) {
		return
	}
	tool.DefaultLogger.Errorf("[Pair] Pairing failed: %v", err)
	c.dropConnection()
	c.clearSession()
	c.errMsg = UserMessage(err)
	if kind == runReconnect {
		c.transition(TriggerReconnectFailed)
	} else {
		c.transition(TriggerJoinFailed)
	}
	c.publish()
}

func (c *Client) handleEvent(ev wsconn.Event) {
	if ev.Gen != c.gen || c.conn == nil {
		tool.DefaultLogger.Debugf("[Conn] Dropping %s from stale gen %d (current %d)", ev.Kind, ev.Gen, c.gen)
		return
	}
	switch ev.Kind {
	case wsconn.EventOpened:
		c.onOpened()
	case wsconn.EventMessage:
		msg, err := decodeInbound(ev.Data)
		if err != nil {
			tool.DefaultLogger.Warnf("[Conn] %v", err)
			return
		}
		tool.DefaultLogger.Debugf("[Conn] Received %s", msg.Type)
		c.handleMessage(msg)
	case wsconn.EventClosed:
		if c.attempt != nil && c.attempt.kind == attemptPair {
			c.dropConnection()
			c.resolveAttempt(&TransportError{Op: "closed", Err: ev.Err})
			return
		}
		tool.DefaultLogger.Warnf("[Conn] Socket closed while %s", c.state)
		c.publish()
	case wsconn.EventFailed:
		tool.DefaultLogger.Warnf("[Conn] Socket error while %s: %v", c.state, ev.Err)
		if c.attempt != nil {
			if c.attempt.kind == attemptPair {
				c.dropConnection()
			}
			c.resolveAttempt(&TransportError{Op: "error", Err: ev.Err})
			return
		}
		c.publish()
	}
}

// onOpened sends the join request. The connect timer keeps running until session_joined.
func (c *Client) onOpened() {
	at := c.attempt
	if at == nil || at.kind != attemptPair {
		return
	}
	if err := c.conn.Send(at.join); err != nil {
		c.dropConnection()
		c.resolveAttempt(&TransportError{Op: "send", Err: err})
		return
	}
	tool.DefaultLogger.Debugf("[Pair] join_session sent")
}

func (c *Client) handleMessage(msg types.InboundMessage) {
	switch msg.Type {
	case types.MessageTypeSessionJoined:
		c.onSessionJoined(msg)
	case types.MessageTypeFileUploaded:
		c.onFileUploaded(msg)
	case types.MessageTypeUploadError, types.MessageTypeError:
		c.onServerError(msg)
	default:
		tool.DefaultLogger.Debugf("[Conn] Ignoring message of type %q", msg.Type)
	}
}

func (c *Client) onSessionJoined(msg types.InboundMessage) {
	at := c.attempt
	if at == nil || at.kind != attemptPair {
		tool.DefaultLogger.Debugf("[Pair] Unexpected session_joined ignored")
		return
	}
	c.sessionId = msg.SessionId
	c.resolveAttempt(nil)
	if c.state == StateValidating {
		c.transition(TriggerJoinSucceeded)
		tool.DefaultLogger.Infof("[Pair] Joined session %s", msg.SessionId)
	} else {
		tool.DefaultLogger.Infof("[Pair] Rejoined session %s", msg.SessionId)
	}
	c.errMsg = ""
	c.publish()
}

func (c *Client) onServerError(msg types.InboundMessage) {
	at := c.attempt
	if at == nil {
		tool.DefaultLogger.Warnf("[Conn] %s with no pending request: %s", msg.Type, msg.Message)
		return
	}
	text := msg.Message
	if text == "" {
		switch {
		case at.kind == attemptPair:
			text = "Connection failed"
		case msg.Type == types.MessageTypeUploadError:
			text = "Upload failed"
		default:
			text = "Transfer failed"
		}
	}
	tool.DefaultLogger.Warnf("[%s] Server reported %s: %s", kindPrefix(at.kind), msg.Type, text)
	if at.kind == attemptPair {
		c.dropConnection()
	}
	c.resolveAttempt(&ProtocolError{Type: msg.Type, Message: text})
}

func kindPrefix(k attemptKind) string {
	if k == attemptPair {
		return "Pair"
	}
	return "Transfer"
}
