package models

import (
	"os"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/moyoez/pairdrop-go/session"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/types"
)

// DefaultTTL bounds how long finished transfers stay queryable.
var DefaultTTL = 30 * time.Minute

var (
	transferRecords = ttlworker.NewCache[string, types.TransferRecord](DefaultTTL)

	stagedMu   sync.Mutex
	stagedPath string
)

func StoreTransferRecord(rec types.TransferRecord) {
	transferRecords.Set(rec.FileId, rec)
}

func LookupTransferRecord(fileId string) (types.TransferRecord, bool) {
	rec := transferRecords.Get(fileId)
	return rec, rec.FileId != ""
}

func DeleteTransferRecord(fileId string) {
	transferRecords.Delete(fileId)
}

// StageFile remembers path as the uploaded file currently offered to the session and
// removes the one it replaces.
func StageFile(path string) {
	stagedMu.Lock()
	prev := stagedPath
	stagedPath = path
	stagedMu.Unlock()
	removeStaged(prev)
}

// ReleaseStagedFile deletes the staged upload, if any.
func ReleaseStagedFile() {
	StageFile("")
}

func removeStaged(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		tool.DefaultLogger.Warnf("Failed to remove staged file %s: %v", path, err)
	}
}

// Recorder is a session.Observer that keeps a TransferRecord for every finished transfer.
// It runs on the session loop.
type Recorder struct {
	last session.Snapshot
	file *types.FileInfo
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnSnapshot(s session.Snapshot) {
	prev := r.last
	r.last = s
	if s.State == session.StateTransferring && s.File != nil {
		r.file = s.File
	}
	if prev.State != session.StateTransferring || s.FileId == "" {
		return
	}
	if s.State != session.StateCompleted && s.State != session.StateError {
		return
	}

	rec := types.TransferRecord{
		FileId:     s.FileId,
		SessionId:  prev.SessionId,
		Success:    s.State == session.StateCompleted,
		Error:      s.Error,
		FinishedAt: time.Now(),
	}
	if r.file != nil {
		rec.Filename = r.file.FileName
		rec.Size = r.file.Size
	}
	r.file = nil
	StoreTransferRecord(rec)
	tool.DefaultLogger.Debugf("[Transfer] Recorded %s success=%v", rec.FileId, rec.Success)
}
