package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxFrameSize = 1 << 20 // 1MB; a long stroke is a few KB of points
	sendBuffer   = 256

	// maxDecodeFailures is how many malformed frames in a row a connection
	// may produce before it is treated as corrupted and closed.
	maxDecodeFailures = 5
)

// State is the participant lifecycle. Disconnected is terminal.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

// Participant is one connected peer on the host side: a username bound to
// exactly one live connection. It exists from successful handshake until
// disconnect; the hub owns the live set.
type Participant struct {
	Username string
	ConnID   string
	JoinedAt time.Time

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger

	mu    sync.Mutex
	state State

	closeOnce sync.Once
}

func newParticipant(hub *Hub, conn *websocket.Conn, username string, logger *zap.Logger) *Participant {
	return &Participant{
		Username: username,
		ConnID:   uuid.New().String(),
		JoinedAt: time.Now(),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		logger:   logger,
		state:    StateConnecting,
	}
}

// State returns the participant's lifecycle state.
func (p *Participant) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Participant) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// queue hands a pre-serialized frame to the write pump without blocking the
// broadcaster. A full buffer means the peer is not draining; the frame is
// dropped and the connection closed so the disconnect transition runs.
func (p *Participant) queue(frame []byte) {
	select {
	case <-p.done:
	case p.send <- frame:
	default:
		p.logger.Warn("participant send buffer full, dropping connection",
			zap.String("username", p.Username))
		p.close()
	}
}

// close signals both pumps to stop; the read pump's exit performs the hub
// removal. The send channel itself is never closed so concurrent queue calls
// stay safe.
func (p *Participant) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// run starts both pumps and blocks until the connection is gone.
func (p *Participant) run() {
	go p.writePump()
	p.readPump()
}

// readPump decodes one framed message at a time and relays drawing events.
// It owns the disconnect transition: any exit path removes the participant
// from the live set.
func (p *Participant) readPump() {
	defer func() {
		p.hub.remove(p)
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(maxFrameSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	decodeFailures := 0
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := models.DecodeFrame(raw)
		if err != nil {
			decodeFailures++
			p.logger.Warn("malformed frame dropped",
				zap.String("username", p.Username),
				zap.Int("consecutive", decodeFailures),
				zap.Error(err))
			if decodeFailures >= maxDecodeFailures {
				p.logger.Error("closing corrupted connection",
					zap.String("username", p.Username))
				return
			}
			continue
		}

		switch env.Type {
		case models.FrameDrawing:
			ev, err := models.DecodeEvent(env.Data)
			if err != nil {
				decodeFailures++
				p.logger.Warn("undecodable drawing event dropped",
					zap.String("username", p.Username),
					zap.Int("consecutive", decodeFailures),
					zap.Error(err))
				if decodeFailures >= maxDecodeFailures {
					return
				}
				continue
			}
			decodeFailures = 0
			// Relay the frame verbatim to everyone else, then hand the
			// decoded event to the host's own board.
			p.hub.Broadcast(raw, p.Username)
			p.hub.deliver(RemoteEvent{From: p.Username, Event: ev})
		default:
			// Nothing but drawing frames is expected after the handshake.
			// Arbitrary bytes can parse as an envelope with an unknown type,
			// so these count toward the corruption threshold too.
			decodeFailures++
			p.logger.Warn("unexpected frame dropped",
				zap.String("username", p.Username),
				zap.String("type", env.Type),
				zap.Int("consecutive", decodeFailures))
			if decodeFailures >= maxDecodeFailures {
				p.logger.Error("closing corrupted connection",
					zap.String("username", p.Username))
				return
			}
		}
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. A write failure closes the connection, which surfaces in readPump
// as the disconnect transition.
func (p *Participant) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case <-p.done:
			_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.logger.Warn("write failed",
					zap.String("username", p.Username),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
