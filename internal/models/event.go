package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event kinds carried in the "type" field of a drawing payload.
const (
	EventPath    = "path"
	EventTextBox = "text_box"
	EventImage   = "image"
)

var (
	// ErrUnknownEventType is returned when the "type" tag is not one of the
	// three drawing kinds.
	ErrUnknownEventType = errors.New("unknown drawing event type")
)

// Point is a 2-D scene coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Event is one immutable user-initiated drawing action. Concrete types are
// PathEvent, TextBoxEvent and ImageEvent; decode sites switch exhaustively
// on Kind().
type Event interface {
	Kind() string
	Validate() error
}

// PathEvent is a completed pen stroke: ordered points, stroke color and width.
// Point order is stroke order and is never reordered.
type PathEvent struct {
	Type   string  `json:"type"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
}

// NewPathEvent builds a path event with the type tag set.
func NewPathEvent(points []Point, color string, size float64) *PathEvent {
	return &PathEvent{Type: EventPath, Points: points, Color: color, Size: size}
}

func (e *PathEvent) Kind() string { return EventPath }

func (e *PathEvent) Validate() error {
	if len(e.Points) == 0 {
		return errors.New("path event has no points")
	}
	if e.Size <= 0 {
		return fmt.Errorf("path event stroke width must be positive, got %v", e.Size)
	}
	if e.Color == "" {
		return errors.New("path event color is empty")
	}
	return nil
}

// TextBoxEvent is a placed text box.
type TextBoxEvent struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontFamily string  `json:"font_family"`
	FontSize   int     `json:"font_size"`
	Color      string  `json:"color"`
}

// NewTextBoxEvent builds a text box event with the type tag set.
func NewTextBoxEvent(text string, x, y float64, fontFamily string, fontSize int, color string) *TextBoxEvent {
	return &TextBoxEvent{
		Type:       EventTextBox,
		Text:       text,
		X:          x,
		Y:          y,
		FontFamily: fontFamily,
		FontSize:   fontSize,
		Color:      color,
	}
}

func (e *TextBoxEvent) Kind() string { return EventTextBox }

func (e *TextBoxEvent) Validate() error {
	if e.FontSize <= 0 {
		return fmt.Errorf("text box font size must be positive, got %d", e.FontSize)
	}
	if e.Color == "" {
		return errors.New("text box color is empty")
	}
	return nil
}

// ImageEvent is a placed image. The wire event carries position and
// dimensions only; pixel data is not transmitted.
type ImageEvent struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// NewImageEvent builds an image event with the type tag set.
func NewImageEvent(x, y float64, width, height int) *ImageEvent {
	return &ImageEvent{Type: EventImage, X: x, Y: y, Width: width, Height: height}
}

func (e *ImageEvent) Kind() string { return EventImage }

func (e *ImageEvent) Validate() error {
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("image dimensions must be positive, got %dx%d", e.Width, e.Height)
	}
	return nil
}

// EncodeEvent serializes a drawing event to its wire form.
func EncodeEvent(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DecodeEvent parses and validates one drawing event. Unknown type tags and
// missing or invalid fields are decode errors; the caller drops the event and
// keeps the connection open.
func DecodeEvent(data []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode drawing event: %w", err)
	}

	var ev Event
	switch probe.Type {
	case EventPath:
		ev = &PathEvent{}
	case EventTextBox:
		ev = &TextBoxEvent{}
	case EventImage:
		ev = &ImageEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, probe.Type)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", probe.Type, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s event: %w", probe.Type, err)
	}
	return ev, nil
}
