package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/dialcheck/dialcheck/internal/audio"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is one frame of the Twilio media-stream protocol.
type streamMessage struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type mediaPayload struct {
	Track   string `json:"track,omitempty"`
	Payload string `json:"payload"`
}

// HandlerConfig holds the shared dependencies for all media sessions.
type HandlerConfig struct {
	Registry      *Registry
	Store         storage.ObjectStore
	MaxConcurrent int
	Logger        *slog.Logger
}

// Handler serves the /media-stream websocket endpoint with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
	log *slog.Logger
}

// NewHandler creates a media-stream handler with a concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 10
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
		log: log,
	}
}

// ServeHTTP upgrades the connection and runs the media session. Returns 503
// when at capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runStream(r.Context(), conn)
}

func (h *Handler) runStream(ctx context.Context, conn *websocket.Conn) {
	var (
		session   *Session
		streamSid string
		gate      = audio.NewGate(0, 0)
		buffered  []int16
	)
	defer func() {
		if session != nil {
			// Removal from the registry is the consumer's job; closing here
			// just signals the call ended.
			session.Close()
			h.log.Info("call ended", "test_id", session.TestID, "call_id", session.CallID)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Error("media stream read failed", "error", err)
			}
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("skipping malformed media frame", "error", err)
			continue
		}

		switch msg.Event {
		case "connected":
			// Protocol preamble, nothing to do until start.

		case "start":
			if msg.Start == nil {
				h.log.Warn("start frame without payload")
				return
			}
			testID := msg.Start.CustomParameters["test_id"]
			if testID == "" {
				h.log.Error("media stream started without test_id parameter")
				return
			}
			streamSid = msg.Start.StreamSid
			session = h.cfg.Registry.Open(testID, msg.Start.CallSid, h.cfg.Store, h.log)
			h.log.Info("call connected", "test_id", testID, "call_id", msg.Start.CallSid, "stream_sid", streamSid)
			go h.writePump(conn, session, streamSid)

		case "media":
			if session == nil || msg.Media == nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				h.log.Warn("skipping undecodable media payload", "error", err)
				continue
			}
			samples := audio.DecodeUlaw(raw)
			speech, endOfTurn := gate.Feed(samples)
			if speech {
				buffered = append(buffered, samples...)
			}
			if endOfTurn && len(buffered) > 0 {
				if err := session.RecordTurn(ctx, models.SpeakerAgent, "", buffered); err != nil {
					h.log.Error("recording turn", "test_id", session.TestID, "error", err)
				}
				buffered = nil
			}

		case "stop":
			if session != nil && len(buffered) > 0 {
				if err := session.RecordTurn(ctx, models.SpeakerAgent, "", buffered); err != nil {
					h.log.Error("recording final turn", "test_id", session.TestID, "error", err)
				}
			}
			return
		}
	}
}

// writePump drains the session's outbound audio into media frames.
func (h *Handler) writePump(conn *websocket.Conn, session *Session, streamSid string) {
	for {
		select {
		case payload := <-session.outbound:
			frame := streamMessage{
				Event:     "media",
				StreamSid: streamSid,
				Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(payload)},
			}
			if err := conn.WriteJSON(frame); err != nil {
				h.log.Error("writing media frame", "test_id", session.TestID, "error", err)
				return
			}
		case <-session.Done():
			return
		}
	}
}
