// Package httpapi is the public HTTP surface. It is a thin layer: request
// decoding, bearer authentication, and error mapping; all behavior lives
// in the services.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buffermesh/buffermesh/internal/logging"
	"github.com/buffermesh/buffermesh/internal/server/auth"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/services"
)

// AuthAPI is the account/session surface the server exposes.
type AuthAPI interface {
	Register(ctx context.Context, email, password string) (*models.Client, error)
	AuthorizeByEmail(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// DeviceAPI is the device management surface.
type DeviceAPI interface {
	Create(ctx context.Context, clientUID, name string) (*models.Device, error)
	Get(ctx context.Context, clientUID, deviceUID string) (*models.Device, error)
	List(ctx context.Context, clientUID string) ([]*models.Device, error)
	Delete(ctx context.Context, clientUID, deviceUID string) error
	IssueToken(ctx context.Context, clientUID, deviceUID string) (*models.DeviceToken, error)
	RevokeToken(ctx context.Context, clientUID, deviceUID string) error
}

// DeviceAuthAPI is the device-facing token exchange surface.
type DeviceAuthAPI interface {
	AuthorizeDevice(ctx context.Context, deviceToken string) (*models.DeviceAccessToken, error)
	RefreshDeviceAccessToken(ctx context.Context, oldToken string) (*models.DeviceAccessToken, error)
}

// BufferAPI is the buffer management surface.
type BufferAPI interface {
	Create(ctx context.Context, clientUID, name, deviceUID string) (*models.Buffer, error)
	Get(ctx context.Context, clientUID, bufferUID string) (*models.Buffer, error)
	List(ctx context.Context, clientUID string) ([]*models.Buffer, error)
	Delete(ctx context.Context, clientUID, bufferUID string) error
}

// SchemeAPI is the connection scheme management surface.
type SchemeAPI interface {
	Create(ctx context.Context, clientUID, name string, usedBuffers []string, transitions map[string][]string) (*models.ConnectionScheme, error)
	Get(ctx context.Context, clientUID, schemeUID string) (*models.ConnectionScheme, error)
	List(ctx context.Context, clientUID string) ([]*models.ConnectionScheme, error)
	Update(ctx context.Context, clientUID, schemeUID, name string, usedBuffers []string, transitions map[string][]string) (*models.ConnectionScheme, error)
	Delete(ctx context.Context, clientUID, schemeUID string) error
}

// MessageAPI is the messaging surface.
type MessageAPI interface {
	AddMessage(ctx context.Context, clientUID, bufferUID, content, contentType, attachmentKey string) (*models.Message, error)
	GetMessagesByBuffer(ctx context.Context, clientUID, bufferUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error)
	GetMessagesByScheme(ctx context.Context, clientUID, schemeUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error)
	GetMessagesByDevice(ctx context.Context, clientUID, deviceUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error)
	GetAttachmentUploadURL(ctx context.Context) (string, string, error)
	GetAttachmentDownloadURL(ctx context.Context, key string) (string, error)
}

// HealthChecker reports whether a remote service role answers on the bus.
type HealthChecker interface {
	CheckHealth(ctx context.Context, service string) error
}

// Server hosts the HTTP API for whatever service roles this process runs.
// Surfaces left nil are simply not routed.
type Server struct {
	addr   string
	logger logging.Logger
	engine *gin.Engine

	verifier   services.TokenVerifier
	auth       AuthAPI
	devices    DeviceAPI
	deviceAuth DeviceAuthAPI
	buffers    BufferAPI
	schemes    SchemeAPI
	messages   MessageAPI

	health      HealthChecker
	healthRoles []string
}

// Option configures a Server surface.
type Option func(*Server)

func WithAuth(api AuthAPI) Option           { return func(s *Server) { s.auth = api } }
func WithDevices(api DeviceAPI) Option      { return func(s *Server) { s.devices = api } }
func WithDeviceAuth(api DeviceAuthAPI) Option {
	return func(s *Server) { s.deviceAuth = api }
}
func WithBuffers(api BufferAPI) Option   { return func(s *Server) { s.buffers = api } }
func WithSchemes(api SchemeAPI) Option   { return func(s *Server) { s.schemes = api } }
func WithMessages(api MessageAPI) Option { return func(s *Server) { s.messages = api } }

// WithHealth wires the /health aggregate over the given remote roles.
func WithHealth(h HealthChecker, roles []string) Option {
	return func(s *Server) {
		s.health = h
		s.healthRoles = roles
	}
}

// NewServer builds the gin engine and registers routes for the configured
// surfaces.
func NewServer(addr string, verifier services.TokenVerifier, logger logging.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:     addr,
		logger:   logger.With("module", "httpapi"),
		verifier: verifier,
		engine:   gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")

	if s.auth != nil {
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)
		api.POST("/token/refresh", s.handleRefresh)
		api.POST("/logout", s.handleLogout)
	}
	if s.deviceAuth != nil {
		api.POST("/device/authorize", s.handleAuthorizeDevice)
		api.POST("/device/token/refresh", s.handleRefreshDeviceAccess)
	}

	authed := api.Group("", s.requireClient())
	if s.devices != nil {
		authed.POST("/devices", s.handleCreateDevice)
		authed.GET("/devices", s.handleListDevices)
		authed.GET("/devices/:uid", s.handleGetDevice)
		authed.DELETE("/devices/:uid", s.handleDeleteDevice)
		authed.POST("/devices/:uid/token", s.handleIssueDeviceToken)
		authed.DELETE("/devices/:uid/token", s.handleRevokeDeviceToken)
	}
	if s.buffers != nil {
		authed.POST("/buffers", s.handleCreateBuffer)
		authed.GET("/buffers", s.handleListBuffers)
		authed.GET("/buffers/:uid", s.handleGetBuffer)
		authed.DELETE("/buffers/:uid", s.handleDeleteBuffer)
	}
	if s.schemes != nil {
		authed.POST("/schemes", s.handleCreateScheme)
		authed.GET("/schemes", s.handleListSchemes)
		authed.GET("/schemes/:uid", s.handleGetScheme)
		authed.PUT("/schemes/:uid", s.handleUpdateScheme)
		authed.DELETE("/schemes/:uid", s.handleDeleteScheme)
	}
	if s.messages != nil {
		authed.POST("/buffers/:uid/messages", s.handleAddMessage)
		authed.GET("/buffers/:uid/messages", s.handleMessagesByBuffer)
		authed.GET("/schemes/:uid/messages", s.handleMessagesByScheme)
		authed.GET("/devices/:uid/messages", s.handleMessagesByDevice)
		authed.POST("/attachments/upload-url", s.handleAttachmentUploadURL)
		authed.GET("/attachments/download-url", s.handleAttachmentDownloadURL)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info(ctx, "http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
