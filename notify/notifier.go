// Package notify forwards session state changes to local listeners.
package notify

import (
	"context"
	"fmt"

	"github.com/moyoez/pairdrop-go/session"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
)

const queueSize = 32

// Broadcaster is the websocket hub of the control API.
type Broadcaster interface {
	Broadcast(notification *types.Notification)
}

// Notifier is a session.Observer. Delivery happens on its own goroutine (Run) so the
// session loop never waits on a slow listener.
type Notifier struct {
	hub        Broadcaster
	socketPath string
	queue      chan *types.Notification

	prev    session.Snapshot
	hasPrev bool
}

// NewNotifier sends to hub when it is not nil and to socketPath when it is not empty.
func NewNotifier(hub Broadcaster, socketPath string) *Notifier {
	return &Notifier{
		hub:        hub,
		socketPath: socketPath,
		queue:      make(chan *types.Notification, queueSize),
	}
}

// OnSnapshot is called from the session loop.
func (n *Notifier) OnSnapshot(s session.Snapshot) {
	var prev *session.Snapshot
	if n.hasPrev {
		prev = &n.prev
	}
	n.prev, n.hasPrev = s, true

	for _, note := range Build(prev, s) {
		select {
		case n.queue <- note:
		default:
			tool.DefaultLogger.Warnf("[Notify] Queue full, dropped %s", note.Type)
		}
	}
}

func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case note := <-n.queue:
			n.deliver(note)
		}
	}
}

func (n *Notifier) deliver(note *types.Notification) {
	if n.hub != nil {
		n.hub.Broadcast(note)
	}
	if n.socketPath != "" {
		if err := SendNotification(note, n.socketPath); err != nil {
			tool.DefaultLogger.Debugf("[Notify] %v", err)
		}
	}
}

// Build returns the notifications caused by moving from prev (nil at start) to s.
// Snapshots that differ only in fields nobody renders produce nothing.
func Build(prev *session.Snapshot, s session.Snapshot) []*types.Notification {
	if prev != nil && prev.State == s.State && prev.Progress == s.Progress &&
		prev.Error == s.Error && prev.Connected == s.Connected && prev.SessionId == s.SessionId {
		return nil
	}

	data := map[string]any{
		"state":     string(s.State),
		"progress":  s.Progress,
		"connected": s.Connected,
	}
	if s.SessionId != "" {
		data["sessionId"] = s.SessionId
	}
	if s.FileId != "" {
		data["fileId"] = s.FileId
	}
	if s.Error != "" {
		data["error"] = s.Error
	}
	if s.File != nil {
		data["fileName"] = s.File.FileName
		data["fileType"] = s.File.FileType
		data["size"] = s.File.Size
	}

	out := []*types.Notification{{
		Type:    types.NotifyTypeStateChanged,
		Title:   "State Changed",
		Message: string(s.State),
		Data:    data,
	}}

	if prev == nil || prev.State == s.State {
		return out
	}
	switch s.State {
	case session.StateCompleted:
		out = append(out, &types.Notification{
			Type:    types.NotifyTypeTransferCompleted,
			Title:   "Transfer Completed",
			Message: fmt.Sprintf("File delivered: fileId=%s", s.FileId),
			Data:    map[string]any{"sessionId": s.SessionId, "fileId": s.FileId},
		})
	case session.StateError:
		out = append(out, &types.Notification{
			Type:    types.NotifyTypeTransferFailed,
			Title:   "Transfer Failed",
			Message: s.Error,
			Data:    map[string]any{"sessionId": s.SessionId, "fileId": s.FileId},
		})
	}
	return out
}
