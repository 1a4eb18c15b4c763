package board

import (
	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
)

// Sender transmits one event over a client's single host connection.
// *session.Client satisfies this.
type Sender interface {
	SendEvent(e models.Event) error
}

// Broadcaster fans one event out to every participant except its origin.
// *session.Hub satisfies this.
type Broadcaster interface {
	BroadcastEvent(e models.Event, origin string) error
}

// Synchronizer bridges local drawing actions and the network. Local actions
// hit the scene first, so the user never waits on the network to see their
// own stroke, and then go out fire-and-forget; transport errors are logged,
// not returned to the drawing path.
type Synchronizer struct {
	scene  *Scene
	logger *zap.Logger

	// Exactly one of these is set while a session is live; both nil means
	// drawing offline.
	sender      Sender
	broadcaster Broadcaster
	origin      string
}

// NewSynchronizer creates a synchronizer over a scene, initially offline.
func NewSynchronizer(scene *Scene, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{scene: scene, logger: logger}
}

// AttachClient routes local events to the host over a joined connection.
func (s *Synchronizer) AttachClient(sender Sender) {
	s.sender = sender
	s.broadcaster = nil
}

// AttachHost routes local events to the hub broadcast, tagged with the
// hosting participant's name so they are not echoed back.
func (s *Synchronizer) AttachHost(b Broadcaster, origin string) {
	s.broadcaster = b
	s.sender = nil
	s.origin = origin
}

// Detach returns the synchronizer to offline drawing.
func (s *Synchronizer) Detach() {
	s.sender = nil
	s.broadcaster = nil
}

// Scene returns the underlying scene.
func (s *Synchronizer) Scene() *Scene { return s.scene }

// LocalEvent applies a locally-initiated drawing event and forwards it to
// the session, when one is attached.
func (s *Synchronizer) LocalEvent(e models.Event) (*Item, error) {
	item, err := s.scene.Apply(e)
	if err != nil {
		return nil, err
	}
	switch {
	case s.broadcaster != nil:
		if err := s.broadcaster.BroadcastEvent(e, s.origin); err != nil {
			s.logger.Warn("broadcast failed", zap.String("kind", e.Kind()), zap.Error(err))
		}
	case s.sender != nil:
		if err := s.sender.SendEvent(e); err != nil {
			s.logger.Warn("send failed", zap.String("kind", e.Kind()), zap.Error(err))
		}
	}
	return item, nil
}

// RemoteEvent applies a drawing event received from the session exactly as
// if it were local, including its undo record. It is never re-sent; the
// host's relay already fanned it out.
func (s *Synchronizer) RemoteEvent(e models.Event) (*Item, error) {
	item, err := s.scene.Apply(e)
	if err != nil {
		s.logger.Warn("remote event discarded", zap.String("kind", e.Kind()), zap.Error(err))
		return nil, err
	}
	return item, nil
}

// DrawPath applies and forwards a completed pen stroke.
func (s *Synchronizer) DrawPath(points []models.Point, color string, size float64) (*Item, error) {
	return s.LocalEvent(models.NewPathEvent(points, color, size))
}

// AddTextBox applies and forwards a placed text box.
func (s *Synchronizer) AddTextBox(text string, x, y float64, fontFamily string, fontSize int, color string) (*Item, error) {
	return s.LocalEvent(models.NewTextBoxEvent(text, x, y, fontFamily, fontSize, color))
}

// AddImage applies and forwards a placed image.
func (s *Synchronizer) AddImage(x, y float64, width, height int) (*Item, error) {
	return s.LocalEvent(models.NewImageEvent(x, y, width, height))
}

// Undo reverses the most recent action locally. Undo never crosses the
// network; other participants keep the item.
func (s *Synchronizer) Undo() bool { return s.scene.Undo() }

// Redo reapplies the most recently undone action locally.
func (s *Synchronizer) Redo() bool { return s.scene.Redo() }
