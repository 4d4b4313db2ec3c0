package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"diagview/internal/auth"
	"diagview/internal/board"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// StreamMessage is one frame of the telemetry stream
type StreamMessage struct {
	Type     string          `json:"type"` // "snapshot", "update"
	Active   string          `json:"active,omitempty"`
	Surfaces []board.Surface `json:"surfaces,omitempty"`
	Update   *board.Update   `json:"update,omitempty"`
}

// StreamHandler streams board updates over WebSocket
type StreamHandler struct {
	board        *board.Board
	wsTokenStore *auth.WSTokenStore
	noAuth       bool
	upgrader     websocket.Upgrader
}

// NewStreamHandler creates new stream handler
func NewStreamHandler(b *board.Board, wsTokenStore *auth.WSTokenStore, noAuth bool) *StreamHandler {
	h := &StreamHandler{
		board:        b,
		wsTokenStore: wsTokenStore,
		noAuth:       noAuth,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the connection with a one-time ws_token.
// This prevents Cross-Site WebSocket Hijacking (CSWSH) attacks.
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	if h.noAuth {
		return true
	}

	token := r.URL.Query().Get("ws_token")
	if token == "" {
		log.Printf("[stream] WebSocket rejected: missing ws_token")
		return false
	}

	user, valid := h.wsTokenStore.Consume(token)
	if !valid {
		log.Printf("[stream] WebSocket rejected: invalid or expired ws_token")
		return false
	}

	log.Printf("[stream] WebSocket connection authorized for user: %s", user.Username)
	return true
}

// Connect handles GET /api/stream. The first frame is a snapshot of every
// surface; every sink write follows as an update frame.
func (h *StreamHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	updates := h.board.Subscribe()
	defer h.board.Unsubscribe(updates)

	// Reader: handles pongs and notices the client going away
	closed := make(chan struct{})
	ws.SetReadDeadline(time.Now().Add(streamPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[stream] WebSocket read error: %v", err)
				}
				return
			}
		}
	}()

	snapshot := StreamMessage{Type: "snapshot", Active: h.board.Active(), Surfaces: h.board.Snapshot()}
	if err := h.write(ws, snapshot); err != nil {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(ws, StreamMessage{Type: "update", Update: &u}); err != nil {
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(ws *websocket.Conn, msg StreamMessage) error {
	ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := ws.WriteJSON(msg); err != nil {
		log.Printf("[stream] WebSocket write error: %v", err)
		return err
	}
	return nil
}
