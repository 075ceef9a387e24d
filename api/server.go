package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/moyoez/pairdrop-go/api/controllers"
	"github.com/moyoez/pairdrop-go/api/middlewares"
	"github.com/moyoez/pairdrop-go/api/notifyhub"
	"github.com/moyoez/pairdrop-go/tool"
)

const (
	requestsPerSecond = 20
	requestBurst      = 40
)

// Server is the local control surface. It only listens on loopback.
type Server struct {
	port    int
	session *controllers.SessionController
	hub     *notifyhub.Hub

	mu     sync.RWMutex
	engine *gin.Engine
	server *http.Server
}

// NewServer builds the server. hub may be nil to disable /notify-ws.
func NewServer(port int, session *controllers.SessionController, hub *notifyhub.Hub) *Server {
	return &Server{
		port:    port,
		session: session,
		hub:     hub,
	}
}

// Engine returns the router, building it on first use.
func (s *Server) Engine() *gin.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	self := engine.Group("/api/self/v1",
		middlewares.OnlyAllowLocal,
		middlewares.RateLimit(rate.Limit(requestsPerSecond), requestBurst))
	{
		self.GET("/status", s.session.HandleStatus)                             // Current state snapshot
		self.POST("/pair", s.session.HandlePair)                                // Submit code or QR payload
		self.POST("/file", s.session.HandleFile)                                // Select a file (multipart "file")
		self.POST("/cancel-choice", s.session.HandleCancelChoice)               // Back to connected
		self.POST("/send", s.session.HandleSend)                                // Start the transfer
		self.POST("/cancel-transfer", s.session.HandleCancelTransfer)           // Abort transfer and retries
		self.POST("/send-another", s.session.HandleSendAnother)                 // Completed -> connected
		self.POST("/reset", s.session.HandleReset)                              // Back to input from anywhere
		self.POST("/retry", s.session.HandleRetry)                              // Error -> input
		self.POST("/lifecycle", s.session.HandleLifecycle)                      // UI visibility changes
		self.GET("/transfers/:fileId", s.session.HandleTransferRecord)          // Finished transfer record
		self.DELETE("/transfers/:fileId", s.session.HandleDeleteTransferRecord) // Dismiss a record
		self.GET("/remote-status", s.session.HandleRemoteStatus)                // REST session status
		self.POST("/cancel-session", s.session.HandleCancelSession)             // REST cancel + reset
		self.GET("/create-qr-code", controllers.GenerateQRCode)                 // QR code PNG (same params as api.qrserver.com)
		if s.hub != nil {
			self.GET("/notify-ws", notifyhub.HandleNotifyWS(s.hub))
		}
	}
	return engine
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	engine := s.Engine()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting control API on http://%s/api/self/v1", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
