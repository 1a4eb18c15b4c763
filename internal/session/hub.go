// Package session is the encrypted session transport and the host-side
// broadcast coordinator: a TLS WebSocket listener accepting participants, a
// hub fanning drawing frames out to everyone but their origin, and the
// joining client.
package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
)

var (
	// ErrUsernameTaken is returned when a participant's username is already
	// connected to this session.
	ErrUsernameTaken = errors.New("username already in session")
	// ErrSessionFull is returned when the participant cap is reached.
	ErrSessionFull = errors.New("session is full")
)

// RemoteEvent is a decoded drawing event received from a participant,
// delivered to the host's synchronizer off the I/O goroutines.
type RemoteEvent struct {
	From  string
	Event models.Event
}

// PresenceHandler is called on participant connect/disconnect.
type PresenceHandler func(username string)

// Hub is the broadcast coordinator. It is the sole authority on the current
// participant set; every mutation and every iteration during broadcast goes
// through its lock.
type Hub struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	max          int
	closed       bool

	events chan RemoteEvent
	logger *zap.Logger

	onConnect    PresenceHandler
	onDisconnect PresenceHandler
}

// NewHub creates a hub with the given participant cap (0 means unbounded).
func NewHub(maxParticipants int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		participants: make(map[string]*Participant),
		max:          maxParticipants,
		events:       make(chan RemoteEvent, sendBuffer),
		logger:       logger,
	}
}

// SetPresenceHandlers installs connect/disconnect notification callbacks.
// Handlers run outside the hub lock.
func (h *Hub) SetPresenceHandlers(onConnect, onDisconnect PresenceHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = onConnect
	h.onDisconnect = onDisconnect
}

// Events is the queue of decoded inbound drawing events for the host's own
// board. State mutation happens on the consumer's goroutine, never on a
// connection's read loop.
func (h *Hub) Events() <-chan RemoteEvent { return h.events }

// add admits a participant after a successful handshake, moving it to
// Connected and raising the connect notification.
func (h *Hub) add(p *Participant) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrSessionFull
	}
	if _, exists := h.participants[p.Username]; exists {
		h.mu.Unlock()
		return ErrUsernameTaken
	}
	if h.max > 0 && len(h.participants) >= h.max {
		h.mu.Unlock()
		return ErrSessionFull
	}
	h.participants[p.Username] = p
	onConnect := h.onConnect
	h.mu.Unlock()

	p.setState(StateConnected)
	h.logger.Info("participant connected", zap.String("username", p.Username))
	if onConnect != nil {
		onConnect(p.Username)
	}
	return nil
}

// remove runs the disconnect transition: the participant leaves the live set
// exactly once and the disconnect notification is raised.
func (h *Hub) remove(p *Participant) {
	h.mu.Lock()
	current, ok := h.participants[p.Username]
	if !ok || current != p {
		h.mu.Unlock()
		return
	}
	delete(h.participants, p.Username)
	onDisconnect := h.onDisconnect
	h.mu.Unlock()

	p.setState(StateDisconnected)
	p.close()
	h.logger.Info("participant disconnected", zap.String("username", p.Username))
	if onDisconnect != nil {
		onDisconnect(p.Username)
	}
}

// Broadcast writes an already-serialized frame to every connected participant
// except origin. The sender applied the event locally before transmitting, so
// echoing it back would duplicate it there.
func (h *Hub) Broadcast(frame []byte, origin string) {
	h.mu.RLock()
	targets := make([]*Participant, 0, len(h.participants))
	for username, p := range h.participants {
		if username == origin {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	for _, p := range targets {
		p.queue(frame)
	}
}

// BroadcastEvent serializes a drawing event once and fans it out.
func (h *Hub) BroadcastEvent(e models.Event, origin string) error {
	frame, err := models.EncodeDrawingFrame(e)
	if err != nil {
		return err
	}
	h.Broadcast(frame, origin)
	return nil
}

// deliver hands one decoded inbound event to the host's board queue. Dropping
// under overload keeps the relay path from blocking on a slow consumer.
func (h *Hub) deliver(ev RemoteEvent) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("host event queue full, dropping event",
			zap.String("from", ev.From))
	}
}

// Usernames lists connected participants.
func (h *Hub) Usernames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.participants))
	for name := range h.participants {
		names = append(names, name)
	}
	return names
}

// Count returns the number of connected participants.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.participants)
}

// Close tears the session down: no further admissions, every participant
// socket closed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	remaining := make([]*Participant, 0, len(h.participants))
	for _, p := range h.participants {
		remaining = append(remaining, p)
	}
	h.mu.Unlock()

	for _, p := range remaining {
		p.close()
	}
}
