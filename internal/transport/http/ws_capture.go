package http

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/n1-ro/recoverpro/internal/app"
)

// CaptureHandler is the live recording channel. One websocket per open
// scenario: the client streams audio chunks up, the server owns the
// capture state machine and acks each chunk with elapsed time and level.
type CaptureHandler struct {
	captures app.CaptureStore
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewCaptureHandler(captures app.CaptureStore, log *slog.Logger) *CaptureHandler {
	return &CaptureHandler{
		captures: captures,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	ContentType string `json:"contentType"`
	FileFormat  string `json:"fileFormat"`
}

type chunkPayload struct {
	Data string `json:"data"` // base64-encoded audio
}

type statePayload struct {
	State    app.CaptureState `json:"state"`
	Recorded int              `json:"recorded,omitempty"` // seconds, set after stop
}

type levelPayload struct {
	Elapsed int     `json:"elapsed"`
	Level   float64 `json:"level"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the capture loop for one scenario.
func (h *CaptureHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	scenarioID, err := strconv.ParseInt(r.URL.Query().Get("scenarioId"), 10, 64)
	if err != nil || scenarioID <= 0 {
		writeError(w, http.StatusBadRequest, "missing or invalid scenarioId")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := h.captures.GetOrCreate(claims.UID, scenarioID)

	// send is never closed: the release hook below outlives the connection
	// (the capture store may close the session much later), so the writer
	// exits on done instead.
	send := make(chan outboundMessage[any], 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Warn("ws write error", "error", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	// deliver queues a message for the writer. Selecting on writerDone keeps
	// the read loop from blocking on a full buffer after a write error; false
	// means the writer is gone and the connection is finished.
	deliver := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	deliver(outboundMessage[any]{Type: "state", Payload: statePayload{State: session.State()}})

	// The release hook tells the client to let go of the microphone. The
	// session guarantees it fires exactly once per recording no matter
	// which path ends it.
	release := func() {
		select {
		case send <- outboundMessage[any]{Type: "release", Payload: struct{}{}}:
		default:
		}
	}

loop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var out outboundMessage[any]
		switch inbound.Type {
		case "start":
			var payload startPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
					break
				}
			}
			if err := session.Start(release, payload.ContentType, payload.FileFormat); err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				break
			}
			out = outboundMessage[any]{Type: "state", Payload: statePayload{State: session.State()}}
		case "chunk":
			var payload chunkPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid chunk payload"}}
				break
			}
			data, err := base64.StdEncoding.DecodeString(payload.Data)
			if err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "chunk is not valid base64"}}
				break
			}
			ack, err := session.AppendChunk(data)
			if err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				break
			}
			out = outboundMessage[any]{Type: "level", Payload: levelPayload{Elapsed: ack.Elapsed, Level: ack.Level}}
		case "stop":
			capture, err := session.Stop()
			if err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				break
			}
			out = outboundMessage[any]{Type: "state", Payload: statePayload{State: session.State(), Recorded: capture.Duration}}
		case "discard":
			if err := session.Discard(); err != nil {
				out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				break
			}
			out = outboundMessage[any]{Type: "state", Payload: statePayload{State: session.State()}}
		default:
			out = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if !deliver(out) {
			break loop
		}
	}

	close(done)
	<-writerDone
}
