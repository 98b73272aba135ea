package wshandler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"messaging-service/internal/domain"
	"messaging-service/pkg/middleware"
	"messaging-service/pkg/roombus/ws"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientCommand is the small inbound protocol: clients dynamically join and
// leave article rooms while viewing articles.
type clientCommand struct {
	Action    string `json:"action"` // "join" | "leave"
	ArticleID string `json:"articleId"`
}

// HandleSocket upgrades HTTP -> WebSocket, registers the session in its
// identity rooms and serves the join/leave loop until the peer goes away.
func (h *WSHandler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	deviceID := middleware.DeviceID(r.Context())
	sessionID := middleware.SessionID(r.Context())
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	log.Printf("[ws] session=%s user=%s device=%s", sessionID, userID, deviceID)

	s := h.hub.Add(sessionID, userID, deviceID, conn)

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		s.Touch()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.Touch()

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil || cmd.ArticleID == "" {
			continue
		}
		room := []domain.RoomTarget{domain.ArticleRoom(cmd.ArticleID)}
		switch cmd.Action {
		case "join":
			h.hub.JoinRooms(s, room)
		case "leave":
			h.hub.LeaveRooms(s, room)
		}
	}

	h.hub.Remove(s)
}
