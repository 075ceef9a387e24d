package controllers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/pairdrop-go/api/models"
	"github.com/moyoez/pairdrop-go/session"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/transfer"
	"github.com/moyoez/pairdrop-go/types"
)

// Commander is the part of session.Client the control API drives.
type Commander interface {
	SubmitCode(code, token string) error
	SubmitValidated(code string, v types.ValidateCodeResponse) error
	ChooseFile(f session.File) error
	CancelChoice() error
	Send() error
	CancelTransfer() error
	SendAnother() error
	Reset() error
	Retry() error
	Snapshot() session.Snapshot
}

// RemoteAPI is the REST side of the desktop service. Optional.
type RemoteAPI interface {
	ValidateCode(ctx context.Context, code string) (*types.ValidateCodeResponse, error)
	GetSessionStatus(ctx context.Context, sessionId string) (*types.TransferSessionStatus, error)
	CancelSession(ctx context.Context, sessionId string) error
}

// VisibilitySink receives foreground/background reports from the UI.
type VisibilitySink interface {
	Set(visible bool)
}

type SessionController struct {
	client      Commander
	remote      RemoteAPI
	visibility  VisibilitySink
	maxFileSize int64
	restPairing bool
}

type SessionControllerOption func(*SessionController)

// WithRemote enables the REST endpoints. validate makes /pair validate codes over REST first.
func WithRemote(remote RemoteAPI, validate bool) SessionControllerOption {
	return func(s *SessionController) {
		s.remote = remote
		s.restPairing = validate
	}
}

func WithVisibility(v VisibilitySink) SessionControllerOption {
	return func(s *SessionController) { s.visibility = v }
}

func NewSessionController(client Commander, maxFileSize int64, opts ...SessionControllerOption) *SessionController {
	s := &SessionController{client: client, maxFileSize: maxFileSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errorStatus maps a command error onto an HTTP status.
func errorStatus(err error) int {
	var apiErr *transfer.APIError
	switch {
	case errors.Is(err, session.ErrInvalidCodeFormat), errors.Is(err, tool.ErrInvalidQRPayload):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrWrongState):
		return http.StatusConflict
	case errors.Is(err, session.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorText(err error) string {
	switch {
	case errors.Is(err, tool.ErrInvalidQRPayload):
		return "The QR code does not contain a valid 6-digit code."
	case errors.Is(err, session.ErrWrongState):
		return "Not allowed in the current state."
	case errors.Is(err, session.ErrClosed):
		return "Session client stopped."
	}
	return session.UserMessage(err)
}

func (s *SessionController) respond(c *gin.Context, err error) {
	if err != nil {
		c.JSON(errorStatus(err), tool.FastReturnError(errorText(err)))
		return
	}
	c.JSON(http.StatusOK, s.client.Snapshot())
}

// HandleStatus returns the current snapshot.
// GET /api/self/v1/status
func (s *SessionController) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.client.Snapshot())
}

// HandlePair starts pairing from a typed code or a scanned QR payload.
// POST /api/self/v1/pair
func (s *SessionController) HandlePair(c *gin.Context) {
	var req types.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body: "+err.Error()))
		return
	}

	code, token := req.Code, req.Token
	if req.Payload != "" {
		var err error
		code, token, err = tool.ParsePairingPayload(req.Payload)
		if err != nil {
			s.respond(c, err)
			return
		}
		if token == "" {
			token = req.Token
		}
	}

	if s.restPairing && s.remote != nil && tool.IsValidCode(code) {
		validated, err := s.remote.ValidateCode(c.Request.Context(), code)
		if err != nil {
			tool.DefaultLogger.Warnf("[Pair] REST validation failed: %v", err)
			s.respond(c, err)
			return
		}
		if validated.Token == "" {
			validated.Token = token
		}
		s.respond(c, s.client.SubmitValidated(code, *validated))
		return
	}
	s.respond(c, s.client.SubmitCode(code, token))
}

// HandleFile stages a multipart upload and selects it.
// POST /api/self/v1/file
func (s *SessionController) HandleFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing form file: file"))
		return
	}

	// oversized files are rejected by the session before anything is copied
	if header.Size > s.maxFileSize {
		s.respond(c, s.client.ChooseFile(&formFile{header: header}))
		return
	}

	path, err := stageUpload(header)
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to stage upload %s: %v", header.Filename, err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to store file"))
		return
	}
	f, err := tool.OpenLocalFileAs(path, filepath.Base(header.Filename))
	if err != nil {
		_ = os.Remove(path)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to open stored file"))
		return
	}
	if err := s.client.ChooseFile(f); err != nil {
		_ = os.Remove(path)
		s.respond(c, err)
		return
	}
	models.StageFile(path)
	s.respond(c, nil)
}

func stageUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "pairdrop-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// formFile exposes a multipart header as a session.File without copying it.
type formFile struct {
	header *multipart.FileHeader
}

func (f *formFile) Name() string { return filepath.Base(f.header.Filename) }
func (f *formFile) Size() int64  { return f.header.Size }

func (f *formFile) MimeType() string {
	if ct := f.header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (f *formFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

func (s *SessionController) HandleCancelChoice(c *gin.Context) {
	err := s.client.CancelChoice()
	if err == nil {
		models.ReleaseStagedFile()
	}
	s.respond(c, err)
}

func (s *SessionController) HandleSend(c *gin.Context) {
	s.respond(c, s.client.Send())
}

func (s *SessionController) HandleCancelTransfer(c *gin.Context) {
	s.respond(c, s.client.CancelTransfer())
}

func (s *SessionController) HandleSendAnother(c *gin.Context) {
	err := s.client.SendAnother()
	if err == nil {
		models.ReleaseStagedFile()
	}
	s.respond(c, err)
}

func (s *SessionController) HandleReset(c *gin.Context) {
	err := s.client.Reset()
	models.ReleaseStagedFile()
	s.respond(c, err)
}

func (s *SessionController) HandleRetry(c *gin.Context) {
	err := s.client.Retry()
	if err == nil {
		models.ReleaseStagedFile()
	}
	s.respond(c, err)
}

// HandleLifecycle feeds UI visibility into the lifecycle watcher.
// POST /api/self/v1/lifecycle
func (s *SessionController) HandleLifecycle(c *gin.Context) {
	var req types.LifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body: "+err.Error()))
		return
	}
	if s.visibility == nil {
		c.JSON(http.StatusNotImplemented, tool.FastReturnError("Lifecycle source not configured"))
		return
	}
	s.visibility.Set(req.Visible)
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleTransferRecord returns what is known about a finished transfer.
// GET /api/self/v1/transfers/:fileId
func (s *SessionController) HandleTransferRecord(c *gin.Context) {
	rec, ok := models.LookupTransferRecord(c.Param("fileId"))
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Transfer not found"))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleDeleteTransferRecord dismisses a finished transfer from the history.
// DELETE /api/self/v1/transfers/:fileId
func (s *SessionController) HandleDeleteTransferRecord(c *gin.Context) {
	fileId := c.Param("fileId")
	if _, ok := models.LookupTransferRecord(fileId); !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Transfer not found"))
		return
	}
	models.DeleteTransferRecord(fileId)
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleRemoteStatus asks the service about the current session.
// GET /api/self/v1/remote-status
func (s *SessionController) HandleRemoteStatus(c *gin.Context) {
	sessionId, ok := s.remoteSession(c)
	if !ok {
		return
	}
	status, err := s.remote.GetSessionStatus(c.Request.Context(), sessionId)
	if err != nil {
		s.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(status))
}

// HandleCancelSession cancels the session on the service, then resets locally.
// POST /api/self/v1/cancel-session
func (s *SessionController) HandleCancelSession(c *gin.Context) {
	sessionId, ok := s.remoteSession(c)
	if !ok {
		return
	}
	if err := s.remote.CancelSession(c.Request.Context(), sessionId); err != nil {
		s.respond(c, err)
		return
	}
	s.HandleReset(c)
}

func (s *SessionController) remoteSession(c *gin.Context) (string, bool) {
	if s.remote == nil {
		c.JSON(http.StatusNotImplemented, tool.FastReturnError("REST API not configured"))
		return "", false
	}
	sessionId := s.client.Snapshot().SessionId
	if sessionId == "" {
		c.JSON(http.StatusConflict, tool.FastReturnError("No active session"))
		return "", false
	}
	return sessionId, true
}
