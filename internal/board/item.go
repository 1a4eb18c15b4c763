// Package board holds the drawing surface state and the synchronizer that
// bridges local user actions and the session network layer.
package board

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/LF-108/BestNotes/internal/models"
)

// Rect is an axis-aligned region of the scene.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Intersects reports whether two regions overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Item is one renderable scene element created from a drawing event. How it
// is drawn belongs to the rendering surface; the core only tracks identity,
// placement and the originating event.
type Item struct {
	ID     string
	Event  models.Event
	Bounds Rect
}

// NewItem materializes a drawing event into a renderable item.
func NewItem(e models.Event) (*Item, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	item := &Item{ID: uuid.New().String(), Event: e}
	switch ev := e.(type) {
	case *models.PathEvent:
		item.Bounds = pathBounds(ev)
	case *models.TextBoxEvent:
		// Text extent is a rendering concern; the core tracks the anchor.
		item.Bounds = Rect{X: ev.X, Y: ev.Y}
	case *models.ImageEvent:
		item.Bounds = Rect{X: ev.X, Y: ev.Y, Width: float64(ev.Width), Height: float64(ev.Height)}
	default:
		return nil, fmt.Errorf("unsupported event kind %q", e.Kind())
	}
	return item, nil
}

func pathBounds(e *models.PathEvent) Rect {
	minX, minY := e.Points[0].X, e.Points[0].Y
	maxX, maxY := minX, minY
	for _, pt := range e.Points[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
