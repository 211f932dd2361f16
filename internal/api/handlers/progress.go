package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tgvault/tgvault/internal/api/middleware"
	"github.com/tgvault/tgvault/internal/utils"
)

// Close code sent when the websocket handshake carries a bad token.
const closeInvalidAuth = 4001

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSubscriber adapts a websocket connection onto the hub's Subscriber.
// Writes are serialized; gorilla connections allow one concurrent writer.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscriber) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

// GET /progress/{operation_id}
// Returns the operation's current record; an empty object once the record
// has been purged.
func (h *Handler) GetOperationProgress(w http.ResponseWriter, r *http.Request) {
	operationID := r.PathValue("operation_id")
	info, ok := h.Hub.Get(operationID)

	data := map[string]any{"operation_id": operationID}
	if ok {
		data["progress"] = info
	} else {
		data["progress"] = map[string]any{}
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Progress retrieved",
		Data:    data,
	})
}

// GET /ws/progress?token=...
// Persistent progress subscription. The client may send "ping" at any
// time and gets "pong" back; everything else it receives is progress
// events for its own operations.
func (h *Handler) WSProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	_, username, err := middleware.ParseSessionToken(r.URL.Query().Get("token"), h.JWTSecret)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeInvalidAuth, "Invalid authentication"))
		conn.Close()
		return
	}

	sub := &wsSubscriber{conn: conn}
	h.Hub.Subscribe(username, sub)
	defer func() {
		h.Hub.Unsubscribe(username, sub)
		conn.Close()
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user", username).Msg("Progress websocket closed")
			}
			return
		}
		if messageType == websocket.TextMessage && string(message) == "ping" {
			if err := sub.Send([]byte("pong")); err != nil {
				return
			}
		}
	}
}
