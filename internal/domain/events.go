package domain

import (
	"encoding/json"
	"time"
)

// Wire event names consumed by connected clients. Payloads carry only the
// changed fields, never a full re-fetch.
const (
	EventMessageNew      = "message:new"
	EventMessageUpdate   = "message:update"
	EventMessageDelete   = "message:delete"
	EventNotificationNew = "notification:new"
	EventNotificationUpd = "notification:update"
	EventNotifyAllRead   = "notification:allread"
	EventChannelLastRead = "channel:lastRead"
)

// MessageUpdate is the partial payload for message:update. Pointer fields
// distinguish "unchanged" (absent) from "set". Orphaning a child after its
// parent is deleted sends ParentCleared with an explicit null parent id.
type MessageUpdate struct {
	ID            string          `json:"id"`
	ChannelID     string          `json:"channelId"`
	Body          *[]Span         `json:"body,omitempty"`
	Attachments   *[]Attachment   `json:"attachments,omitempty"`
	Reactions     *map[string]int `json:"reactions,omitempty"`
	EditedAt      *time.Time      `json:"editedAt,omitempty"`
	ParentCleared bool            `json:"-"`
}

// MarshalJSON emits "parentMessageId": null only for orphan updates, so
// ordinary edit payloads stay minimal.
func (u MessageUpdate) MarshalJSON() ([]byte, error) {
	type alias MessageUpdate
	if !u.ParentCleared {
		return json.Marshal(alias(u))
	}
	return json.Marshal(struct {
		alias
		ParentMessageID *string `json:"parentMessageId"`
	}{alias: alias(u)})
}

// MessageDelete is the payload for message:delete.
type MessageDelete struct {
	IDs       []string `json:"ids"`
	ChannelID string   `json:"channelId"`
}

// ChannelLastRead is the payload for channel:lastRead.
type ChannelLastRead struct {
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId"`
	LastRead  time.Time `json:"lastRead"`
}
