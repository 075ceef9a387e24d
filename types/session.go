package types

import "time"

// TransferRecord is what the control API remembers about a finished transfer.
type TransferRecord struct {
	FileId     string    `json:"fileId"`
	SessionId  string    `json:"sessionId"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}
