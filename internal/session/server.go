package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
	"github.com/LF-108/BestNotes/internal/users"
)

// Handshake rejection codes sent in the error frame before closing.
const (
	CodeUsernameTaken = "username_taken"
	CodeSessionFull   = "session_full"
	CodeBadHandshake  = "bad_handshake"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Peers are desktop clients, not browsers; there is no origin to check.
		return true
	},
}

// ServerConfig holds the session host settings. The participant cap lives
// on the hub, which is constructed by the caller and shared with the board.
type ServerConfig struct {
	Port             int
	CertPath         string
	KeyPath          string
	HostUsername     string
	HandshakeTimeout time.Duration
}

// Server is the host side of the session transport: a TLS listener whose
// accepted connections become hub participants after the hello handshake.
type Server struct {
	cfg    ServerConfig
	hub    *Hub
	users  users.Store
	logger *zap.Logger
	http   *http.Server
}

// NewServer creates a session host bound to the hub and credential store.
func NewServer(cfg ServerConfig, hub *Hub, userStore users.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Server{cfg: cfg, hub: hub, users: userStore, logger: logger}
}

// Hub returns the broadcast coordinator.
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the session endpoint router.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/session", s.handleSession)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "participants": s.hub.Count()})
	})
	return router
}

// Start runs the encrypted listener until Shutdown. The TLS material is
// loaded before binding; a bad certificate or key aborts startup.
func (s *Server) Start() error {
	tlsCfg, err := ServerTLSConfig(s.cfg.CertPath, s.cfg.KeyPath)
	if err != nil {
		return err
	}
	s.http = &http.Server{
		Addr:      fmt.Sprintf(":%d", s.cfg.Port),
		Handler:   s.Router(),
		TLSConfig: tlsCfg,
	}
	s.logger.Info("session host listening",
		zap.Int("port", s.cfg.Port),
		zap.String("host", s.cfg.HostUsername))
	if err := s.http.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("session listener: %w", err)
	}
	return nil
}

// Shutdown stops the listen loop and closes every participant socket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// handleSession upgrades the connection and runs the handshake: the first
// frame must be a hello carrying a username unique within the session. On
// any failure the socket is closed and no participant is created.
func (s *Server) handleSession(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	username, err := s.readHello(conn)
	if err != nil {
		s.logger.Warn("handshake failed", zap.Error(err))
		s.reject(conn, CodeBadHandshake, err.Error())
		return
	}

	// The host is a participant too; its name is taken even though it never
	// appears in the hub's live set.
	if username == s.cfg.HostUsername {
		s.reject(conn, CodeUsernameTaken, fmt.Sprintf("%q is already in this session", username))
		return
	}

	// The join gate: unknown usernames are added to the credential store,
	// matching how hosting and joining both register the name first.
	if err := s.users.Ensure(c.Request.Context(), username); err != nil {
		s.logger.Error("credential store unavailable", zap.Error(err))
		s.reject(conn, CodeBadHandshake, "credential store unavailable")
		return
	}

	p := newParticipant(s.hub, conn, username, s.logger)
	if err := s.hub.add(p); err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			s.reject(conn, CodeUsernameTaken, fmt.Sprintf("%q is already in this session", username))
		case errors.Is(err, ErrSessionFull):
			s.reject(conn, CodeSessionFull, "session participant limit reached")
		default:
			s.reject(conn, CodeBadHandshake, err.Error())
		}
		return
	}

	welcome, err := models.EncodeFrame(models.FrameWelcome, models.WelcomePayload{
		Host:         s.cfg.HostUsername,
		Participants: s.hub.Usernames(),
	})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, welcome)
	}
	if err != nil {
		s.logger.Warn("welcome write failed", zap.String("username", username), zap.Error(err))
		s.hub.remove(p)
		_ = conn.Close()
		return
	}

	go p.run()
}

// readHello reads the first frame under the handshake deadline and extracts
// the username.
func (s *Server) readHello(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}
	env, err := models.DecodeFrame(raw)
	if err != nil {
		return "", fmt.Errorf("decode hello: %w", err)
	}
	if env.Type != models.FrameHello {
		return "", fmt.Errorf("expected hello frame, got %q", env.Type)
	}
	var hello models.HelloPayload
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return "", fmt.Errorf("decode hello payload: %w", err)
	}
	if hello.Username == "" {
		return "", errors.New("hello carries no username")
	}
	return hello.Username, nil
}

// reject sends an error frame and closes the socket.
func (s *Server) reject(conn *websocket.Conn, code, message string) {
	frame, err := models.EncodeFrame(models.FrameError, models.ErrorPayload{Code: code, Message: message})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.Close()
}
