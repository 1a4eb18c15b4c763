// Package discovery is the well-known lookup service: joining clients
// resolve a host's display name to its session endpoint here. One instance
// serves every session hosted from the machine for the process lifetime.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/middleware"
	"github.com/LF-108/BestNotes/internal/registry"
	"github.com/LF-108/BestNotes/internal/users"
	"github.com/LF-108/BestNotes/pkg/response"
)

// SnapshotFunc persists the named host's current board and returns the
// storage key. Installed by the process actually hosting the session.
type SnapshotFunc func(ctx context.Context, host string) (string, error)

// Server answers name-resolution requests against the registry and carries
// the user registration endpoints.
type Server struct {
	port     int
	registry registry.Registry
	users    users.Store
	logger   *zap.Logger
	snapshot SnapshotFunc
	http     *http.Server
}

// NewServer creates the discovery service.
func NewServer(port int, reg registry.Registry, userStore users.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{port: port, registry: reg, users: userStore, logger: logger}
}

// SetSnapshotFunc installs the board snapshot hook.
func (s *Server) SetSnapshotFunc(fn SnapshotFunc) { s.snapshot = fn }

// Router builds the discovery API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(s.logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/resolve/:username", s.handleResolve)
	router.GET("/hosts", s.handleHosts)
	router.POST("/users", s.handleRegister)
	router.GET("/users/:username", s.handleUserExists)
	router.POST("/users/login", s.handleLogin)
	router.POST("/sessions/:username/snapshot", s.handleSnapshot)
	return router
}

// Start runs the listener until Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router(),
	}
	s.logger.Info("discovery service listening", zap.Int("port", s.port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("discovery listener: %w", err)
	}
	return nil
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleResolve(c *gin.Context) {
	username := c.Param("username")
	reg, err := s.registry.Lookup(c.Request.Context(), username)
	if errors.Is(err, registry.ErrHostNotFound) {
		response.NotFound(c, "host not found")
		return
	}
	if err != nil {
		s.logger.Error("registry lookup failed", zap.String("username", username), zap.Error(err))
		response.Internal(c, "registry unavailable")
		return
	}
	response.OK(c, reg)
}

func (s *Server) handleHosts(c *gin.Context) {
	names, err := s.registry.Hosts(c.Request.Context())
	if err != nil {
		s.logger.Error("registry listing failed", zap.Error(err))
		response.Internal(c, "registry unavailable")
		return
	}
	response.OK(c, gin.H{"hosts": names})
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password required")
		return
	}
	err := s.users.Register(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, users.ErrUsernameTaken) {
		response.Conflict(c, "username already exists")
		return
	}
	if err != nil {
		s.logger.Error("user registration failed", zap.String("username", req.Username), zap.Error(err))
		response.Internal(c, "could not register user")
		return
	}
	response.Created(c, gin.H{"username": req.Username})
}

func (s *Server) handleUserExists(c *gin.Context) {
	username := c.Param("username")
	exists, err := s.users.Exists(c.Request.Context(), username)
	if err != nil {
		s.logger.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		response.Internal(c, "could not check user")
		return
	}
	if !exists {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, gin.H{"username": username})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password required")
		return
	}
	err := s.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		response.Unauthorized(c, "user not found")
	case errors.Is(err, users.ErrInvalidPassword):
		response.Unauthorized(c, "invalid password")
	case err != nil:
		s.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		response.Internal(c, "could not verify credentials")
	default:
		response.OK(c, gin.H{"username": req.Username})
	}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	if s.snapshot == nil {
		response.NotFound(c, "snapshots not configured")
		return
	}
	host := c.Param("username")
	key, err := s.snapshot(c.Request.Context(), host)
	if err != nil {
		s.logger.Error("snapshot failed", zap.String("host", host), zap.Error(err))
		response.Internal(c, "snapshot failed")
		return
	}
	response.Created(c, gin.H{"key": key})
}
