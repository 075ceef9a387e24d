package session

import (
	"context"
	"fmt"

	"github.com/moyoez/pairdrop-go/backoff"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
	"github.com/moyoez/pairdrop-go/wsconn"
)

// ChooseFile selects f for the next transfer. Files above the size limit are rejected
// before anything is read.
func (c *Client) ChooseFile(f File) error {
	if err := c.do(func() error {
		if c.state != StateConnected {
			return ErrWrongState
		}
		if f.Size() > c.cfg.MaxFileSize {
			tool.DefaultLogger.Warnf("[Transfer] %s rejected: %d bytes exceeds %d", f.Name(), f.Size(), c.cfg.MaxFileSize)
			c.errMsg = UserMessage(ErrFileTooLarge)
			c.publish()
			return ErrFileTooLarge
		}
		return nil
	}); err != nil {
		return err
	}

	preview := buildPreview(f)

	return c.do(func() error {
		if c.state != StateConnected {
			return ErrWrongState
		}
		c.pending = &pendingFile{file: f, preview: preview}
		c.errMsg = ""
		c.transition(TriggerFileChosen)
		tool.DefaultLogger.Infof("[Transfer] Selected %s (%s, %d bytes)", f.Name(), f.MimeType(), f.Size())
		c.publish()
		return nil
	})
}

func (c *Client) CancelChoice() error {
	return c.do(func() error {
		if !c.transition(TriggerCancelChoice) {
			return ErrWrongState
		}
		c.pending = nil
		c.publish()
		return nil
	})
}

func (c *Client) SendAnother() error {
	return c.do(func() error {
		if !c.transition(TriggerSendAnother) {
			return ErrWrongState
		}
		c.pending = nil
		c.progress = 0
		c.fileId = ""
		c.errMsg = ""
		c.publish()
		return nil
	})
}

// CancelTransfer aborts a running transfer and its remaining retries.
func (c *Client) CancelTransfer() error {
	return c.do(func() error {
		if c.state != StateTransferring {
			return ErrWrongState
		}
		c.cancelRun()
		c.resolveAttempt(ErrCancelled)
		c.transition(TriggerUserCancel)
		c.pending = nil
		c.errMsg = UserMessage(ErrCancelled)
		tool.DefaultLogger.Infof("[Transfer] %s cancelled by user", c.fileId)
		c.publish()
		return nil
	})
}

// Send uploads the selected file. Unmet preconditions fail with ErrNotReady without
// touching the socket, including while a rejoin is still waiting for session_joined.
// Everything else is reported through the state.
func (c *Client) Send() error {
	return c.do(func() error {
		if c.state != StateFileSelection || c.pending == nil {
			return ErrNotReady
		}
		if c.attempt != nil && c.attempt.kind == attemptPair {
			// a foreground rejoin has not confirmed the session yet
			tool.DefaultLogger.Debugf("[Transfer] Not ready: rejoin in progress")
			return ErrNotReady
		}
		if !c.conn.IsOpen() || c.sessionId == "" {
			tool.DefaultLogger.Warnf("[Transfer] Not ready: open=%v session=%q", c.conn.IsOpen(), c.sessionId)
			c.errMsg = UserMessage(ErrNotReady)
			c.publish()
			return ErrNotReady
		}
		c.transition(TriggerSendInitiated)
		c.progress = 0
		c.fileId = tool.NewFileID()
		c.errMsg = ""
		c.publish()
		c.startTransfer()
		return nil
	})
}

// startTransfer sends the same file with the same fileId on the current socket,
// retrying without redialing.
func (c *Client) startTransfer() {
	r := c.newRun(runTransfer)
	f := c.pending.file
	sessionId, fileId := c.sessionId, c.fileId
	tool.DefaultLogger.Infof("[Transfer] Sending %s as %s", f.Name(), fileId)

	go func() {
		var payload []byte
		_, err := backoff.Retry(r.ctx, c.cfg.policy("Transfer"), func(ctx context.Context, a backoff.Attempt) (struct{}, error) {
			if payload == nil {
				p, err := encodeUpload(f, sessionId, fileId)
				if err != nil {
					return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrFileUnreadable, err))
				}
				payload = p
			}
			return struct{}{}, permanentIfFatal(c.transferOnce(ctx, a, payload))
		})
		c.post(func() { c.finishTransfer(r, err) })
	}()
}

func (c *Client) transferOnce(ctx context.Context, a backoff.Attempt, payload []byte) error {
	result := make(chan error, 1)
	var (
		at   *attempt
		conn *wsconn.Handle
	)
	if err := c.do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.conn.IsOpen() || c.sessionId == "" {
			return &TransportError{Op: "send", Err: wsconn.ErrNotOpen}
		}
		at = newAttempt(attemptTransfer, c.gen, result)
		c.attempt = at
		conn = c.conn
		c.progress = 50
		tool.DefaultLogger.Debugf("[Transfer] Attempt %d sending %d bytes", a.Number, len(payload))
		c.publish()
		return nil
	}); err != nil {
		return err
	}

	sendErr := conn.Send(payload)
	c.post(func() { c.onUploadSent(at, sendErr) })
	return await(ctx, result)
}

// onUploadSent starts the acknowledgement timer once the frame is written. The write
// itself is bounded by the connection's size-scaled write deadline.
func (c *Client) onUploadSent(at *attempt, err error) {
	if c.attempt != at {
		return
	}
	if err != nil {
		c.resolveAttempt(&TransportError{Op: "send", Err: err})
		c.publish()
		return
	}
	c.progress = 100
	c.arm(at, c.cfg.TransferTimeout, func() {
		tool.DefaultLogger.Warnf("[Transfer] No acknowledgement within %s", c.cfg.TransferTimeout)
		c.resolveAttempt(ErrTransferTimeout)
	})
	c.publish()
}

func (c *Client) onFileUploaded(msg types.InboundMessage) {
	if c.state != StateTransferring {
		tool.DefaultLogger.Debugf("[Transfer] file_uploaded ignored in state %s", c.state)
		return
	}
	if msg.FileId != "" && msg.FileId != c.fileId {
		tool.DefaultLogger.Debugf("[Transfer] Ack for unknown file %s ignored", msg.FileId)
		return
	}
	c.resolveAttempt(nil)
	c.cancelRun()
	c.completeTransfer()
}

func (c *Client) completeTransfer() {
	c.transition(TriggerServerAck)
	c.progress = 100
	c.pending = nil
	c.errMsg = ""
	tool.DefaultLogger.Infof("[Transfer] %s delivered", c.fileId)
	c.publish()
}

func (c *Client) finishTransfer(r *run, err error) {
	if c.run != r {
		return
	}
	c.run = nil
	if err == nil {
		if c.state == StateTransferring {
			c.completeTransfer()
		}
		return
	}
	if c.state != StateTransferring {
		return
	}
	tool.DefaultLogger.Errorf("[Transfer] %s failed: %v", c.fileId, err)
	c.transition(TriggerTransferFailed)
	c.pending = nil
	c.errMsg = UserMessage(err)
	c.publish()
}
