package session

import (
	"errors"
	"fmt"

	"github.com/moyoez/pairdrop-go/backoff"
)

var (
	ErrInvalidCodeFormat = errors.New("invalid code format")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrTransferTimeout   = errors.New("transfer timeout")
	ErrNotReady          = errors.New("not ready to transfer")
	ErrFileTooLarge      = errors.New("file too large")
	ErrCancelled         = errors.New("cancelled")
	ErrWrongState        = errors.New("command not allowed in current state")
	ErrClosed            = errors.New("session client closed")
	ErrFileUnreadable    = errors.New("file unreadable")
)

// TransportError is a socket level failure: dial, write, error or unexpected close.
type TransportError struct {
	Op  string // "dial", "send", "error", "closed"
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "connection " + e.Op
	}
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is an error or upload_error message from the service.
type ProtocolError struct {
	Type    string
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// UserMessage turns any failure into the short text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		protoErr     *ProtocolError
		transportErr *TransportError
	)
	switch {
	case errors.As(err, &protoErr):
		return protoErr.Message
	case errors.Is(err, ErrInvalidCodeFormat):
		return "Please enter a 6-digit code."
	case errors.Is(err, ErrFileTooLarge):
		return "Please select a file smaller than 100MB"
	case errors.Is(err, ErrConnectionTimeout):
		return "Connection timeout"
	case errors.Is(err, ErrTransferTimeout):
		return "Transfer timeout"
	case errors.Is(err, ErrNotReady):
		return "Connection lost. Please reconnect."
	case errors.Is(err, ErrCancelled):
		return "Transfer cancelled"
	case errors.Is(err, ErrFileUnreadable):
		return "Could not read the selected file."
	case errors.As(err, &transportErr):
		if transportErr.Op == "closed" {
			return "Connection closed"
		}
		return "Connection failed"
	}
	return err.Error()
}

// isRetryable is false for precondition failures the retry loop cannot fix.
func isRetryable(err error) bool {
	return !errors.Is(err, ErrNotReady) && !errors.Is(err, ErrFileTooLarge) &&
		!errors.Is(err, ErrInvalidCodeFormat) && !errors.Is(err, ErrCancelled) &&
		!errors.Is(err, ErrClosed) && !errors.Is(err, ErrFileUnreadable)
}

func permanentIfFatal(err error) error {
	if err != nil && !isRetryable(err) {
		return backoff.Permanent(err)
	}
	return err
}
