package board

import (
	"encoding/json"
	"sync"

	"github.com/LF-108/BestNotes/internal/models"
)

// Scene owns the board's undo/redo history on top of a rendering surface.
// Every item in the undo stack is currently on the surface; every item in
// the redo stack is currently absent from it. Remote events go through the
// same Apply path as local ones, so later operations cannot tell them apart.
type Scene struct {
	mu      sync.Mutex
	surface Surface
	base    []*Item // restored from a snapshot, beneath the undo history
	undo    [][]*Item
	redo    [][]*Item
}

// NewScene creates a scene over a rendering surface.
func NewScene(surface Surface) *Scene {
	return &Scene{surface: surface}
}

// Apply materializes a drawing event, places it on the surface and records
// it as one undoable action. A new action discards any redoable history.
func (s *Scene) Apply(e models.Event) (*Item, error) {
	item, err := NewItem(e)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.AddRenderableItem(item)
	s.undo = append(s.undo, []*Item{item})
	s.redo = nil
	return item, nil
}

// Undo removes the most recent item group from the surface and makes it
// redoable. Returns false when there is nothing to undo.
func (s *Scene) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return false
	}
	group := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	for _, item := range group {
		s.surface.RemoveRenderableItem(item)
	}
	s.redo = append(s.redo, group)
	return true
}

// Redo restores the most recently undone item group. Returns false when
// there is nothing to redo.
func (s *Scene) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return false
	}
	group := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	for _, item := range group {
		s.surface.AddRenderableItem(item)
	}
	s.undo = append(s.undo, group)
	return true
}

// UndoDepth returns the number of undoable actions.
func (s *Scene) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

// RedoDepth returns the number of redoable actions.
func (s *Scene) RedoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo)
}

// Snapshot serializes the events behind every currently-visible item, in the
// order they were applied. The persistence collaborator consumes these bytes;
// they are independent of the live protocol.
func (s *Scene) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]models.Event, 0, len(s.base)+len(s.undo))
	for _, item := range s.base {
		events = append(events, item.Event)
	}
	for _, group := range s.undo {
		for _, item := range group {
			events = append(events, item.Event)
		}
	}
	return json.Marshal(events)
}

// Restore places a previously snapshotted board onto the surface. Restored
// items carry no undo records; the loaded board is the floor the session
// starts from, not an action anyone performed.
func (s *Scene) Restore(snapshot []byte) (int, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(snapshot, &raws); err != nil {
		return 0, err
	}
	items := make([]*Item, 0, len(raws))
	for _, raw := range raws {
		e, err := models.DecodeEvent(raw)
		if err != nil {
			return 0, err
		}
		item, err := NewItem(e)
		if err != nil {
			return 0, err
		}
		items = append(items, item)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.surface.AddRenderableItem(item)
	}
	s.base = append(s.base, items...)
	return len(items), nil
}
