package types

const (
	NotifyTypeStateChanged      = "state_changed"
	NotifyTypeTransferCompleted = "transfer_completed"
	NotifyTypeTransferFailed    = "transfer_failed"
	NotifyTypeInfo              = "info"
)

// Notification represents a notification message structure
type Notification struct {
	Type    string         `json:"type,omitempty"`    // Notification type, e.g. "state_changed", "transfer_completed"
	Title   string         `json:"title,omitempty"`   // Notification title
	Message string         `json:"message,omitempty"` // Notification message/content
	Data    map[string]any `json:"data,omitempty"`    // Additional data fields
}
