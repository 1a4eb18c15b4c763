package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LF-108/BestNotes/internal/models"
	"github.com/LF-108/BestNotes/internal/users"
)

const frameWait = 2 * time.Second

// startSession runs a session endpoint over plain websockets for
// handshake-level tests.
func startSession(t *testing.T, host string, timeout time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(0, zap.NewNop())
	srv := NewServer(ServerConfig{
		HostUsername:     host,
		HandshakeTimeout: timeout,
	}, hub, users.NewMemoryStore(), zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	endpoint := "ws" + strings.TrimPrefix(ts.URL, "http") + "/session"
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendHello(t *testing.T, conn *websocket.Conn, username string) {
	t.Helper()
	frame, err := models.EncodeFrame(models.FrameHello, models.HelloPayload{Username: username})
	if err != nil {
		t.Fatalf("encode hello: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(frameWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	env, err := models.DecodeFrame(raw)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return env
}

func readErrorCode(t *testing.T, env models.Envelope) string {
	t.Helper()
	if env.Type != models.FrameError {
		t.Fatalf("got frame type %q, want error", env.Type)
	}
	var payload models.ErrorPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Code
}

func TestHandshakeWelcome(t *testing.T) {
	srv, ts := startSession(t, "alice", 0)
	conn := dialSession(t, ts)
	sendHello(t, conn, "bob")

	env := readFrame(t, conn)
	if env.Type != models.FrameWelcome {
		t.Fatalf("got frame type %q, want welcome", env.Type)
	}
	var welcome models.WelcomePayload
	if err := json.Unmarshal(env.Data, &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if welcome.Host != "alice" {
		t.Errorf("welcome host = %q, want alice", welcome.Host)
	}
	if len(welcome.Participants) != 1 || welcome.Participants[0] != "bob" {
		t.Errorf("welcome participants = %v, want [bob]", welcome.Participants)
	}
	if srv.Hub().Count() != 1 {
		t.Errorf("hub count = %d, want 1", srv.Hub().Count())
	}
}

func TestJoinAsHostNameRejected(t *testing.T) {
	srv, ts := startSession(t, "alice", 0)
	conn := dialSession(t, ts)
	sendHello(t, conn, "alice")

	if code := readErrorCode(t, readFrame(t, conn)); code != CodeUsernameTaken {
		t.Errorf("rejection code = %q, want %q", code, CodeUsernameTaken)
	}
	if srv.Hub().Count() != 0 {
		t.Errorf("hub count = %d, want 0", srv.Hub().Count())
	}
}

func TestHostStillReachesLaterJoiners(t *testing.T) {
	// An impostor claiming the host's name must not end up shadowing it: a
	// legitimate joiner still receives everything broadcast as the host.
	srv, ts := startSession(t, "alice", 0)

	impostor := dialSession(t, ts)
	sendHello(t, impostor, "alice")
	if code := readErrorCode(t, readFrame(t, impostor)); code != CodeUsernameTaken {
		t.Fatalf("impostor rejection code = %q, want %q", code, CodeUsernameTaken)
	}

	bob := dialSession(t, ts)
	sendHello(t, bob, "bob")
	if env := readFrame(t, bob); env.Type != models.FrameWelcome {
		t.Fatalf("bob got frame type %q, want welcome", env.Type)
	}

	e := models.NewPathEvent([]models.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, "#000000", 2)
	if err := srv.Hub().BroadcastEvent(e, "alice"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if env := readFrame(t, bob); env.Type != models.FrameDrawing {
		t.Errorf("bob got frame type %q, want drawing", env.Type)
	}
}

func TestHandshakeRequiresHello(t *testing.T) {
	_, ts := startSession(t, "alice", 0)
	conn := dialSession(t, ts)

	e := models.NewImageEvent(0, 0, 1, 1)
	frame, err := models.EncodeDrawingFrame(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code := readErrorCode(t, readFrame(t, conn)); code != CodeBadHandshake {
		t.Errorf("rejection code = %q, want %q", code, CodeBadHandshake)
	}
}

func TestHandshakeTimesOut(t *testing.T) {
	_, ts := startSession(t, "alice", 100*time.Millisecond)
	conn := dialSession(t, ts)

	// Send nothing. The server must give up on its own and close the socket.
	start := time.Now()
	_ = conn.SetReadDeadline(time.Now().Add(frameWait))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("silent connection lived %v past the handshake deadline", elapsed)
	}
}

func TestDuplicateUsernameOverWire(t *testing.T) {
	_, ts := startSession(t, "alice", 0)

	first := dialSession(t, ts)
	sendHello(t, first, "bob")
	if env := readFrame(t, first); env.Type != models.FrameWelcome {
		t.Fatalf("first join got frame type %q, want welcome", env.Type)
	}

	second := dialSession(t, ts)
	sendHello(t, second, "bob")
	if code := readErrorCode(t, readFrame(t, second)); code != CodeUsernameTaken {
		t.Errorf("rejection code = %q, want %q", code, CodeUsernameTaken)
	}
}

func TestMalformedFramesTolerated(t *testing.T) {
	srv, ts := startSession(t, "alice", 0)
	conn := dialSession(t, ts)
	sendHello(t, conn, "bob")
	if env := readFrame(t, conn); env.Type != models.FrameWelcome {
		t.Fatalf("got frame type %q, want welcome", env.Type)
	}

	// A few garbage frames must not end the connection.
	for i := 0; i < maxDecodeFailures-1; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Fatalf("write garbage: %v", err)
		}
	}
	e := models.NewTextBoxEvent("hi", 5, 5, "Arial", 12, "#000000")
	frame, err := models.EncodeDrawingFrame(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write drawing: %v", err)
	}

	select {
	case ev := <-srv.Hub().Events():
		if ev.From != "bob" || ev.Event.Kind() != models.EventTextBox {
			t.Errorf("got event %q from %q, want text_box from bob", ev.Event.Kind(), ev.From)
		}
	case <-time.After(frameWait):
		t.Fatal("drawing event after garbage frames never reached the host")
	}
}

func TestCorruptedStreamCloses(t *testing.T) {
	srv, ts := startSession(t, "alice", 0)
	conn := dialSession(t, ts)
	sendHello(t, conn, "bob")
	if env := readFrame(t, conn); env.Type != models.FrameWelcome {
		t.Fatalf("got frame type %q, want welcome", env.Type)
	}

	// Bytes that parse as an envelope with an unknown type are corruption
	// all the same; enough of them in a row must end the connection.
	for i := 0; i < maxDecodeFailures; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"foo":1}`)); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(frameWait))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection stayed open past the corruption threshold")
	}

	deadline := time.Now().Add(frameWait)
	for srv.Hub().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("participant never removed from the live set")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClientRelayOverTLS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(0, zap.NewNop())
	srv := NewServer(ServerConfig{HostUsername: "alice"}, hub, users.NewMemoryStore(), zap.NewNop())

	ts := httptest.NewUnstartedServer(srv.Router())
	ts.StartTLS()
	defer ts.Close()

	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())
	tlsCfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}

	addr, portStr, err := net.SplitHostPort(strings.TrimPrefix(ts.URL, "https://"))
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	join := func(username string) *Client {
		t.Helper()
		c, err := Dial(context.Background(), DialConfig{
			Address:  addr,
			Port:     port,
			Username: username,
			TLS:      tlsCfg,
		}, zap.NewNop())
		if err != nil {
			t.Fatalf("dial %s: %v", username, err)
		}
		t.Cleanup(func() { c.Close() })
		return c
	}

	bob := join("bob")
	carol := join("carol")
	if bob.Welcome().Host != "alice" {
		t.Errorf("welcome host = %q, want alice", bob.Welcome().Host)
	}

	e := models.NewPathEvent([]models.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, "#000000", 2)
	if err := bob.SendEvent(e); err != nil {
		t.Fatalf("send: %v", err)
	}

	// The host applies it and carol receives the relay.
	select {
	case ev := <-hub.Events():
		if ev.From != "bob" || ev.Event.Kind() != models.EventPath {
			t.Errorf("host got event %q from %q, want path from bob", ev.Event.Kind(), ev.From)
		}
	case <-time.After(frameWait):
		t.Fatal("event never reached the host")
	}
	select {
	case got := <-carol.Events():
		if got.Kind() != models.EventPath {
			t.Errorf("carol got event %q, want path", got.Kind())
		}
	case <-time.After(frameWait):
		t.Fatal("event never relayed to carol")
	}

	// The sender must not get its own event back.
	select {
	case got := <-bob.Events():
		t.Errorf("bob received his own event back: %q", got.Kind())
	case <-time.After(200 * time.Millisecond):
	}
}
