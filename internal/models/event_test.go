package models

import (
	"errors"
	"testing"
)

func TestPathEventRoundTrip(t *testing.T) {
	original := NewPathEvent([]Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, "#000000", 2)

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	path, ok := decoded.(*PathEvent)
	if !ok {
		t.Fatalf("expected *PathEvent, got %T", decoded)
	}
	if len(path.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(path.Points))
	}
	if path.Points[0] != original.Points[0] || path.Points[1] != original.Points[1] {
		t.Errorf("points mismatch: %v vs %v", path.Points, original.Points)
	}
	if path.Color != "#000000" {
		t.Errorf("color mismatch: %s", path.Color)
	}
	if path.Size != 2 {
		t.Errorf("size mismatch: %v", path.Size)
	}
}

func TestTextBoxEventRoundTrip(t *testing.T) {
	original := NewTextBoxEvent("hi", 5, 5, "Arial", 14, "#ff0000")

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	box, ok := decoded.(*TextBoxEvent)
	if !ok {
		t.Fatalf("expected *TextBoxEvent, got %T", decoded)
	}
	if *box != *original {
		t.Errorf("round trip mismatch: %+v vs %+v", box, original)
	}
}

func TestImageEventRoundTrip(t *testing.T) {
	original := NewImageEvent(3, 4, 300, 200)

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	img, ok := decoded.(*ImageEvent)
	if !ok {
		t.Fatalf("expected *ImageEvent, got %T", decoded)
	}
	if *img != *original {
		t.Errorf("round trip mismatch: %+v vs %+v", img, original)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"scribble"}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestDecodeEventRejectsInvalidFields(t *testing.T) {
	cases := map[string]string{
		"empty path":         `{"type":"path","points":[],"color":"#000000","size":1}`,
		"zero stroke width":  `{"type":"path","points":[{"x":0,"y":0}],"color":"#000000","size":0}`,
		"zero font size":     `{"type":"text_box","text":"hi","x":1,"y":1,"font_family":"Arial","font_size":0,"color":"#000000"}`,
		"negative dimension": `{"type":"image","x":0,"y":0,"width":-1,"height":10}`,
		"not json":           `{{`,
	}
	for name, payload := range cases {
		if _, err := DecodeEvent([]byte(payload)); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}

func TestEncodeDrawingFrame(t *testing.T) {
	frame, err := EncodeDrawingFrame(NewImageEvent(0, 0, 10, 10))
	if err != nil {
		t.Fatalf("EncodeDrawingFrame failed: %v", err)
	}

	env, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if env.Type != FrameDrawing {
		t.Errorf("expected drawing frame, got %s", env.Type)
	}
	if _, err := DecodeEvent(env.Data); err != nil {
		t.Errorf("payload should decode as event: %v", err)
	}
}
