package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"messaging-service/internal/domain"
	"messaging-service/pkg/roombus"
)

// Session wraps one websocket connection together with the rooms it has
// joined. Every session always sits in its user, device and session rooms;
// article rooms are joined on demand while the client views an article.
type Session struct {
	Conn      *websocket.Conn
	SessionID string
	UserID    string
	DeviceID  string

	mu       sync.Mutex
	lastSeen time.Time
	articles []string // joined article room keys, oldest first
}

// Touch records peer activity; the heartbeat reaps sessions that stay
// silent. Called from the read loop, so it takes the session lock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Frame is what connected clients receive per event.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// maxArticleRooms caps concurrently joined article rooms per session;
// joining past the cap evicts the oldest.
const maxArticleRooms = 3

// Hub tracks live sessions and their room membership, and forwards room
// bus frames from Redis pub/sub to matching sessions.
type Hub struct {
	rdb *redis.Client

	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{} // room key -> sessions
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:   rdb,
		rooms: make(map[string]map[*Session]struct{}),
	}
}

// Add registers a connection and joins its identity rooms.
func (h *Hub) Add(sessionID, userID, deviceID string, conn *websocket.Conn) *Session {
	s := &Session{
		Conn:      conn,
		SessionID: sessionID,
		UserID:    userID,
		DeviceID:  deviceID,
		lastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.join(s, domain.SessionRoom(sessionID).Key())
	if userID != "" {
		h.join(s, domain.UserRoom(userID).Key())
	}
	if deviceID != "" {
		h.join(s, domain.DeviceRoom(deviceID).Key())
	}
	h.mu.Unlock()

	log.Printf("[hub] session connected: %s user=%s", sessionID, userID)
	return s
}

// JoinRooms adds the session to the given rooms. Article rooms are capped
// per session with oldest-eviction; other dynamic rooms join unbounded.
func (h *Hub) JoinRooms(s *Session, targets []domain.RoomTarget) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, t := range targets {
		key := t.Key()
		if t.Kind == domain.RoomArticle {
			s.mu.Lock()
			if len(s.articles) >= maxArticleRooms {
				oldest := s.articles[0]
				s.articles = s.articles[1:]
				h.leave(s, oldest)
			}
			s.articles = append(s.articles, key)
			s.mu.Unlock()
		}
		h.join(s, key)
	}
}

// LeaveRooms removes the session from the given rooms.
func (h *Hub) LeaveRooms(s *Session, targets []domain.RoomTarget) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, t := range targets {
		key := t.Key()
		if t.Kind == domain.RoomArticle {
			s.mu.Lock()
			for i, a := range s.articles {
				if a == key {
					s.articles = append(s.articles[:i], s.articles[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		}
		h.leave(s, key)
	}
}

// Remove drops the session from every room and closes the connection.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	for key, members := range h.rooms {
		if _, ok := members[s]; ok {
			delete(members, s)
			if len(members) == 0 {
				delete(h.rooms, key)
			}
		}
	}
	h.mu.Unlock()

	_ = s.Conn.Close()
	log.Printf("[hub] session disconnected: %s", s.SessionID)
}

// join/leave require h.mu held.
func (h *Hub) join(s *Session, key string) {
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = make(map[*Session]struct{})
	}
	h.rooms[key][s] = struct{}{}
}

func (h *Hub) leave(s *Session, key string) {
	if members, ok := h.rooms[key]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
}

// Run consumes the room pub/sub stream and fans frames out to local
// sessions, honoring per-frame exclusions. Blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, "room:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliver(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (h *Hub) deliver(channel string, raw []byte) {
	roomKey := strings.TrimPrefix(channel, "room:")

	var env roombus.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("[hub] bad envelope on %s: %v", channel, err)
		return
	}

	frame := Frame{Event: env.Event, Payload: env.Payload}

	h.mu.RLock()
	members := h.rooms[roomKey]
	sessions := make([]*Session, 0, len(members))
	for s := range members {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if excluded(s, env.Except) {
			continue
		}
		if err := s.Conn.WriteJSON(frame); err != nil {
			log.Printf("[hub] write to session %s failed: %v", s.SessionID, err)
			go h.Remove(s)
		}
	}
}

func excluded(s *Session, except []string) bool {
	for _, key := range except {
		switch key {
		case domain.SessionRoom(s.SessionID).Key(),
			domain.DeviceRoom(s.DeviceID).Key(),
			domain.UserRoom(s.UserID).Key():
			return true
		}
	}
	return false
}

// Heartbeat pings all sessions periodically and reaps the silent ones.
func (h *Hub) Heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		h.mu.RLock()
		seen := make(map[*Session]struct{})
		for _, members := range h.rooms {
			for s := range members {
				seen[s] = struct{}{}
			}
		}
		h.mu.RUnlock()

		for s := range seen {
			if time.Since(s.lastActive()) > 2*interval {
				go h.Remove(s)
				continue
			}
			_ = s.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
		}
	}
}
