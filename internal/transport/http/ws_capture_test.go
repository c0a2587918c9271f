package http

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
	"github.com/n1-ro/recoverpro/internal/infra/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialCapture(t *testing.T, captures app.CaptureStore, scenarioID string) (*websocket.Conn, func()) {
	t.Helper()
	auth := NewAuthenticator("test-secret")
	handler := NewCaptureHandler(captures, testLogger())

	mux := http.NewServeMux()
	mux.Handle("/record", RequireAuth(http.HandlerFunc(handler.ServeWS)))
	server := httptest.NewServer(auth.WithAuth(mux))

	token, err := auth.Sign("u1", "a@example.com", domain.RoleApplicant, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	u := "ws" + server.URL[len("http"):] + "/record?scenarioId=" + scenarioID + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestCaptureChannelRecordingFlow(t *testing.T) {
	captures := memory.NewCaptureStore()
	conn, cleanup := dialCapture(t, captures, "7")
	defer cleanup()

	// Initial state announcement.
	typ, payload := readNext(conn, t, "state")
	if payload["state"] != "idle" {
		t.Fatalf("expected idle, got %v", payload["state"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "start", "payload": map[string]any{}}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	_, payload = readNext(conn, t, "state")
	if payload["state"] != "recording" {
		t.Fatalf("expected recording, got %v", payload["state"])
	}

	chunk := base64.StdEncoding.EncodeToString([]byte{0x10, 0x20, 0x30, 0x40})
	if err := conn.WriteJSON(map[string]any{"type": "chunk", "payload": map[string]any{"data": chunk}}); err != nil {
		t.Fatalf("write chunk: %v", err)
	}
	typ, _ = readNext(conn, t, "level")
	if typ != "level" {
		t.Fatalf("expected level ack, got %s", typ)
	}

	if err := conn.WriteJSON(map[string]any{"type": "stop"}); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	// Stop releases the source and reports the captured state; message
	// order between the two is not fixed.
	releaseSeen := false
	capturedSeen := false
	for i := 0; i < 2; i++ {
		typ, payload = readNext(conn, t, "")
		switch typ {
		case "release":
			releaseSeen = true
		case "state":
			capturedSeen = payload["state"] == "captured"
		}
	}
	if !releaseSeen || !capturedSeen {
		t.Fatalf("expected release and captured state, got release=%v captured=%v", releaseSeen, capturedSeen)
	}

	session, ok := captures.Get("u1", 7)
	if !ok {
		t.Fatal("expected capture session to exist")
	}
	if session.State() != app.CaptureCaptured {
		t.Fatalf("expected captured session, got %s", session.State())
	}
}

func TestCaptureChannelRejectsChunkWhenIdle(t *testing.T) {
	captures := memory.NewCaptureStore()
	conn, cleanup := dialCapture(t, captures, "7")
	defer cleanup()

	readNext(conn, t, "state")

	chunk := base64.StdEncoding.EncodeToString([]byte{1, 2})
	if err := conn.WriteJSON(map[string]any{"type": "chunk", "payload": map[string]any{"data": chunk}}); err != nil {
		t.Fatalf("write chunk: %v", err)
	}
	typ, _ := readNext(conn, t, "")
	if typ != "error" {
		t.Fatalf("expected error for chunk while idle, got %s", typ)
	}
}

func TestCaptureChannelDiscard(t *testing.T) {
	captures := memory.NewCaptureStore()
	conn, cleanup := dialCapture(t, captures, "7")
	defer cleanup()

	readNext(conn, t, "state")

	if err := conn.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readNext(conn, t, "state")

	if err := conn.WriteJSON(map[string]any{"type": "discard"}); err != nil {
		t.Fatalf("write discard: %v", err)
	}
	idleSeen := false
	for i := 0; i < 2; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == "state" && payload["state"] == "idle" {
			idleSeen = true
		}
	}
	if !idleSeen {
		t.Fatal("expected idle state after discard")
	}
}

func TestCaptureChannelRequiresAuth(t *testing.T) {
	auth := NewAuthenticator("test-secret")
	handler := NewCaptureHandler(memory.NewCaptureStore(), testLogger())

	mux := http.NewServeMux()
	mux.Handle("/record", RequireAuth(http.HandlerFunc(handler.ServeWS)))
	server := httptest.NewServer(auth.WithAuth(mux))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/record?scenarioId=7"
	if _, _, err := websocket.DefaultDialer.Dial(u, nil); err == nil {
		t.Fatal("expected dial without token to fail")
	}
}

func TestCaptureChannelExitsWhenClientVanishes(t *testing.T) {
	auth := NewAuthenticator("test-secret")
	handler := NewCaptureHandler(memory.NewCaptureStore(), testLogger())

	served := make(chan struct{})
	mux := http.NewServeMux()
	mux.Handle("/record", RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeWS(w, r)
		close(served)
	})))
	server := httptest.NewServer(auth.WithAuth(mux))
	defer server.Close()

	token, err := auth.Sign("u1", "a@example.com", domain.RoleApplicant, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	u := "ws" + server.URL[len("http"):] + "/record?scenarioId=7&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Queue far more replies than the outbound buffer holds, then drop the
	// connection without reading any of them. The handler must not stay
	// blocked on its send queue once the writer has hit the dead socket.
	for i := 0; i < 64; i++ {
		if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
			break
		}
	}
	conn.UnderlyingConn().Close()

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("capture handler did not return after the peer disappeared")
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
