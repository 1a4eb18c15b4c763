package board

import (
	"testing"

	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
)

type recordingSender struct {
	sent []models.Event
}

func (r *recordingSender) SendEvent(e models.Event) error {
	r.sent = append(r.sent, e)
	return nil
}

type recordingBroadcaster struct {
	events  []models.Event
	origins []string
}

func (r *recordingBroadcaster) BroadcastEvent(e models.Event, origin string) error {
	r.events = append(r.events, e)
	r.origins = append(r.origins, origin)
	return nil
}

// Client "bob" draws a two-point path: it must land on bob's surface
// immediately and go out to the host exactly once.
func TestClientLocalFirstThenSend(t *testing.T) {
	surface := NewMemorySurface()
	sync := NewSynchronizer(NewScene(surface), zap.NewNop())
	sender := &recordingSender{}
	sync.AttachClient(sender)

	item, err := sync.DrawPath([]models.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, "#000000", 2)
	if err != nil {
		t.Fatalf("DrawPath failed: %v", err)
	}

	if !surface.Contains(item.ID) {
		t.Error("local action must apply before any network round trip")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 sent event, got %d", len(sender.sent))
	}
	path, ok := sender.sent[0].(*models.PathEvent)
	if !ok {
		t.Fatalf("expected *PathEvent, got %T", sender.sent[0])
	}
	if path.Color != "#000000" || path.Size != 2 || len(path.Points) != 2 {
		t.Errorf("sent event differs from applied one: %+v", path)
	}
}

// The host's own action broadcasts with itself as origin, so the hub skips
// sending it back.
func TestHostBroadcastsWithSelfOrigin(t *testing.T) {
	sync := NewSynchronizer(NewScene(NewMemorySurface()), zap.NewNop())
	b := &recordingBroadcaster{}
	sync.AttachHost(b, "alice")

	if _, err := sync.AddTextBox("hi", 5, 5, "Arial", 14, "#000000"); err != nil {
		t.Fatalf("AddTextBox failed: %v", err)
	}

	if len(b.events) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(b.events))
	}
	if b.origins[0] != "alice" {
		t.Errorf("broadcast origin should be the host, got %q", b.origins[0])
	}
}

// A remote event is applied and recorded for undo, but never re-sent.
func TestRemoteEventAppliesWithoutEcho(t *testing.T) {
	surface := NewMemorySurface()
	sync := NewSynchronizer(NewScene(surface), zap.NewNop())
	sender := &recordingSender{}
	sync.AttachClient(sender)

	ev := models.NewTextBoxEvent("hi", 5, 5, "Arial", 14, "#000000")
	item, err := sync.RemoteEvent(ev)
	if err != nil {
		t.Fatalf("RemoteEvent failed: %v", err)
	}

	if !surface.Contains(item.ID) {
		t.Error("remote event should create a renderable item")
	}
	if len(sender.sent) != 0 {
		t.Errorf("remote events must not go back to the network, sent %d", len(sender.sent))
	}

	// Remote items undo exactly like local ones.
	if !sync.Undo() {
		t.Fatal("Undo should cover remote-origin items")
	}
	if surface.Contains(item.ID) {
		t.Error("undone remote item should leave the surface")
	}
}

// Undo is local-only: nothing crosses the network.
func TestUndoNeverTouchesNetwork(t *testing.T) {
	sync := NewSynchronizer(NewScene(NewMemorySurface()), zap.NewNop())
	sender := &recordingSender{}
	sync.AttachClient(sender)

	if _, err := sync.AddImage(0, 0, 10, 10); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	before := len(sender.sent)

	sync.Undo()
	sync.Redo()

	if len(sender.sent) != before {
		t.Errorf("undo/redo sent %d extra events", len(sender.sent)-before)
	}
}

// Offline drawing (no session attached) still applies locally.
func TestOfflineDrawing(t *testing.T) {
	surface := NewMemorySurface()
	sync := NewSynchronizer(NewScene(surface), zap.NewNop())

	item, err := sync.DrawPath([]models.Point{{X: 1, Y: 1}}, "#123456", 1)
	if err != nil {
		t.Fatalf("DrawPath failed: %v", err)
	}
	if !surface.Contains(item.ID) {
		t.Error("offline action should still apply")
	}
}

// Invalid local events are rejected before touching the surface or network.
func TestInvalidLocalEventRejected(t *testing.T) {
	surface := NewMemorySurface()
	sync := NewSynchronizer(NewScene(surface), zap.NewNop())
	sender := &recordingSender{}
	sync.AttachClient(sender)

	if _, err := sync.DrawPath(nil, "#000000", 2); err == nil {
		t.Fatal("empty path should be rejected")
	}
	if len(surface.Items()) != 0 || len(sender.sent) != 0 {
		t.Error("rejected event must not reach surface or network")
	}
}
