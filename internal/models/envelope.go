package models

import "encoding/json"

// Frame types carried in the envelope "type" field.
const (
	FrameHello   = "hello"
	FrameWelcome = "welcome"
	FrameDrawing = "drawing"
	FrameError   = "error"
)

// Envelope frames every message on a session connection. One WebSocket
// message holds exactly one envelope.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HelloPayload is the first frame a joining client sends.
type HelloPayload struct {
	Username string `json:"username"`
}

// WelcomePayload acknowledges a successful handshake.
type WelcomePayload struct {
	Host         string   `json:"host"`
	Participants []string `json:"participants"`
}

// ErrorPayload reports a connection-level failure to the peer.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeFrame serializes an envelope with the given payload.
func EncodeFrame(frameType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: frameType, Data: data})
}

// EncodeDrawingFrame wraps one drawing event in a drawing envelope.
func EncodeDrawingFrame(e Event) ([]byte, error) {
	data, err := EncodeEvent(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: FrameDrawing, Data: data})
}

// DecodeFrame parses one framed message.
func DecodeFrame(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
