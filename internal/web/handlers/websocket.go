package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/constants"
	"github.com/kozaktomas/emotion-stream/internal/inference"
	"github.com/kozaktomas/emotion-stream/internal/pipeline"
)

// replyFunc runs one pipeline cycle for payload and writes the reply to conn.
// A returned error is a transport failure and ends the session.
type replyFunc func(ctx context.Context, conn *websocket.Conn, s *pipeline.Session, payload []byte) error

// SessionHandler serves the streaming WebSocket endpoints. Every connection
// gets its own pipeline session and model pair.
type SessionHandler struct {
	config   *config.Config
	factory  inference.Factory
	upgrader websocket.Upgrader
	// pongWait is how long the peer may stay silent while the loop waits for a frame.
	pongWait time.Duration
}

// NewSessionHandler creates a new WebSocket session handler.
func NewSessionHandler(cfg *config.Config, factory inference.Factory, checkOrigin func(*http.Request) bool) *SessionHandler {
	return &SessionHandler{
		config:  cfg,
		factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  constants.SocketBufferSize,
			WriteBufferSize: constants.SocketBufferSize,
			CheckOrigin:     checkOrigin,
		},
		pongWait: constants.PongWait,
	}
}

// Game serves the low-latency single-face endpoint. Every inbound frame is
// answered with one JSON result.
func (h *SessionHandler) Game(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, modeFromConfig(h.config, "game", h.config.Game, false), writeGameReply)
}

// Stream serves the multi-face endpoint. Every inbound frame is answered with
// the annotated frame as a binary JPEG, or a JSON result when it could not be decoded.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, modeFromConfig(h.config, "stream", h.config.Stream, true), writeStreamReply)
}

func (h *SessionHandler) serve(w http.ResponseWriter, r *http.Request, mode pipeline.Mode, reply replyFunc) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := pipeline.NewSession(uuid.NewString(), mode, h.factory.NewModels(), h.config.Inference.FrameTimeout)
	if err != nil {
		log.Printf("failed to create %s session: %v", mode.Name, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session setup failed"),
			time.Now().Add(constants.WriteWait))
		return
	}
	defer session.Close()

	log.Printf("[session %s] %s client connected from %s", session.ID, mode.Name, sanitizeForLog(r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(h.config.Web.MaxFrameBytes)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	go keepAlive(ctx, conn)

	for {
		// The deadline only covers waiting for the peer, not processing the
		// previous frame.
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[session %s] read error: %v", session.ID, err)
			}
			break
		}

		if err := reply(ctx, conn, session, payload); err != nil {
			log.Printf("[session %s] write error: %v", session.ID, err)
			break
		}
	}

	stats := session.Stats()
	log.Printf("[session %s] %s client disconnected: %d frames, %d batches, %d errors",
		session.ID, mode.Name, stats.Frames, stats.Batches, stats.Errors)
}

// keepAlive pings the peer until ctx is done. WriteControl may run
// concurrently with the session's data writes.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(constants.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(constants.WriteWait)); err != nil {
				return
			}
		}
	}
}

func writeGameReply(ctx context.Context, conn *websocket.Conn, s *pipeline.Session, payload []byte) error {
	msg := s.ProcessGame(ctx, payload)
	conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
	return conn.WriteJSON(msg)
}

func writeStreamReply(ctx context.Context, conn *websocket.Conn, s *pipeline.Session, payload []byte) error {
	out := s.ProcessStream(ctx, payload)
	conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
	if out.Message != nil {
		return conn.WriteJSON(out.Message)
	}
	return conn.WriteMessage(websocket.BinaryMessage, out.JPEG)
}
