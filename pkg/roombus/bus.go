package roombus

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/domain"
)

// Bus is the room publish/subscribe fabric. Emit fans one event out to the
// union of target rooms minus the excluded rooms (used to avoid echoing a
// writer's action back to the originating device/session).
type Bus interface {
	Emit(ctx context.Context, event string, payload any, rooms []domain.RoomTarget, except []domain.RoomTarget) error
}

// Envelope is the wire frame carried per room channel. Except keys travel
// with the frame so every subscribing node can drop excluded sessions
// locally.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Except  []string        `json:"except,omitempty"`
}

const channelPrefix = "room:"

// ChannelFor names the Redis pub/sub channel carrying a room's events.
func ChannelFor(room domain.RoomTarget) string {
	return channelPrefix + room.Key()
}

// RedisBus publishes room events over Redis pub/sub, one channel per room.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Emit(ctx context.Context, event string, payload any, rooms []domain.RoomTarget, except []domain.RoomTarget) error {
	if len(rooms) == 0 {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	exceptKeys := make([]string, 0, len(except))
	for _, e := range except {
		exceptKeys = append(exceptKeys, e.Key())
	}

	frame, err := json.Marshal(Envelope{Event: event, Payload: raw, Except: exceptKeys})
	if err != nil {
		return err
	}

	// Deduplicate rooms so a target listed twice gets one publish.
	seen := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		key := room.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := b.rdb.Publish(ctx, channelPrefix+key, frame).Err(); err != nil {
			log.Printf("[bus] publish %s to %s failed: %v", event, key, err)
			return err
		}
	}
	return nil
}
