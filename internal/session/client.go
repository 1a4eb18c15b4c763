package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
)

var (
	// ErrHandshakeRejected is returned when the host refuses the join; the
	// wrapped message carries the host's reason.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrSessionClosed is returned when sending on a client whose connection
	// is gone.
	ErrSessionClosed = errors.New("session connection closed")
)

// DisconnectHandler is called once when the client's connection to the host
// is lost, with the error that ended it (nil on clean close).
type DisconnectHandler func(err error)

// Client is the joining side of the session transport: one encrypted
// connection to a host. Inbound drawing events are decoded on the I/O
// goroutine and handed over on the Events channel; the caller applies them
// on its own thread of control.
type Client struct {
	Username string

	conn    *websocket.Conn
	welcome models.WelcomePayload
	send    chan []byte
	events  chan models.Event
	done    chan struct{}
	logger  *zap.Logger

	onDisconnect DisconnectHandler
	closeOnce    sync.Once
}

// DialConfig holds the settings for joining a session.
type DialConfig struct {
	Address          string
	Port             int
	Username         string
	TLS              *tls.Config
	HandshakeTimeout time.Duration
	OnDisconnect     DisconnectHandler
}

// Dial establishes the encrypted connection and performs the hello/welcome
// handshake. Unreachable host, certificate rejection and handshake refusal
// come back as distinct errors; nothing is retried here, the caller decides.
func Dial(ctx context.Context, cfg DialConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	endpoint := url.URL{Scheme: "wss", Host: fmt.Sprintf("%s:%d", cfg.Address, cfg.Port), Path: "/session"}
	dialer := websocket.Dialer{
		TLSClientConfig:  cfg.TLS,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", endpoint.Host, err)
	}

	welcome, err := handshake(conn, cfg.Username, cfg.HandshakeTimeout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	c := &Client{
		Username:     cfg.Username,
		conn:         conn,
		welcome:      welcome,
		send:         make(chan []byte, sendBuffer),
		events:       make(chan models.Event, sendBuffer),
		done:         make(chan struct{}),
		logger:       logger,
		onDisconnect: cfg.OnDisconnect,
	}
	go c.writePump()
	go c.readPump()

	logger.Info("joined session",
		zap.String("host", welcome.Host),
		zap.String("username", cfg.Username),
		zap.Strings("participants", welcome.Participants))
	return c, nil
}

// handshake sends hello and waits for welcome under the deadline.
func handshake(conn *websocket.Conn, username string, timeout time.Duration) (models.WelcomePayload, error) {
	var welcome models.WelcomePayload

	hello, err := models.EncodeFrame(models.FrameHello, models.HelloPayload{Username: username})
	if err != nil {
		return welcome, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return welcome, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return welcome, fmt.Errorf("await welcome: %w", err)
	}
	env, err := models.DecodeFrame(raw)
	if err != nil {
		return welcome, fmt.Errorf("decode welcome: %w", err)
	}
	switch env.Type {
	case models.FrameWelcome:
		if err := json.Unmarshal(env.Data, &welcome); err != nil {
			return welcome, fmt.Errorf("decode welcome payload: %w", err)
		}
		return welcome, nil
	case models.FrameError:
		var reason models.ErrorPayload
		_ = json.Unmarshal(env.Data, &reason)
		return welcome, fmt.Errorf("%w: %s (%s)", ErrHandshakeRejected, reason.Message, reason.Code)
	default:
		return welcome, fmt.Errorf("expected welcome frame, got %q", env.Type)
	}
}

// Welcome returns the handshake acknowledgement from the host.
func (c *Client) Welcome() models.WelcomePayload { return c.welcome }

// Events is the queue of drawing events received from the host.
func (c *Client) Events() <-chan models.Event { return c.events }

// SendEvent transmits one locally-applied drawing event to the host. The send
// is fire-and-forget; transport errors surface through OnDisconnect.
func (c *Client) SendEvent(e models.Event) error {
	frame, err := models.EncodeDrawingFrame(e)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrSessionClosed
	case c.send <- frame:
		return nil
	}
}

// Close stops the receive loop and releases the socket.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		if c.onDisconnect != nil {
			c.onDisconnect(cause)
		}
	})
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				c.shutdown(nil)
			default:
				c.shutdown(err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := models.DecodeFrame(raw)
		if err != nil {
			c.logger.Warn("malformed frame dropped", zap.Error(err))
			continue
		}
		if env.Type != models.FrameDrawing {
			c.logger.Debug("ignoring frame", zap.String("type", env.Type))
			continue
		}
		ev, err := models.DecodeEvent(env.Data)
		if err != nil {
			c.logger.Warn("undecodable drawing event dropped", zap.Error(err))
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown(err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}
