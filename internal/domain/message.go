package domain

import (
	"time"

	"messaging-service/pkg/xerrors"
)

// SpanType enumerates the typed fragments a message body is built from.
type SpanType string

const (
	SpanText     SpanType = "text"
	SpanMention  SpanType = "mention"
	SpanTag      SpanType = "tag"
	SpanLink     SpanType = "link"
	SpanRichLink SpanType = "rich_link"
)

// Span is one ordered fragment of a message body. Only the fields relevant
// to its type are populated.
type Span struct {
	Type   SpanType `json:"type"`
	Text   string   `json:"text,omitempty"`
	UserID string   `json:"userId,omitempty"` // mention target
	Alias  string   `json:"alias,omitempty"`  // mention display alias at send time
	Tag    string   `json:"tag,omitempty"`
	URL    string   `json:"url,omitempty"`
	Title  string   `json:"title,omitempty"` // rich_link preview title
}

type AttachmentType string

const (
	AttachmentImage       AttachmentType = "image"
	AttachmentLinkPreview AttachmentType = "link_preview"
	AttachmentFile        AttachmentType = "file"
)

type Attachment struct {
	Type   AttachmentType `json:"type"`
	URL    string         `json:"url"`
	Name   string         `json:"name,omitempty"`
	Width  int            `json:"width,omitempty"` // resolved pixel size for image / link_preview
	Height int            `json:"height,omitempty"`
}

// Message is one chat/comment entry. ID is caller supplied and doubles as
// the idempotency key for create retries. Deletion is soft; children of a
// deleted message are orphaned (ParentMessageID cleared), never removed.
type Message struct {
	ID              string         `json:"id"`
	CreatorID       string         `json:"creatorId"`
	CreatorAlias    string         `json:"creatorAlias,omitempty"`
	ChannelID       string         `json:"channelId"`
	Body            []Span         `json:"body"`
	Attachments     []Attachment   `json:"attachments,omitempty"`
	ParentMessageID *string        `json:"parentMessageId,omitempty"`
	Reactions       map[string]int `json:"reactions,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	EditedAt        *time.Time     `json:"editedAt,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       *time.Time     `json:"deletedAt,omitempty"`
}

func (m *Message) Validate() error {
	if m.ID == "" || m.CreatorID == "" || m.ChannelID == "" {
		return xerrors.ErrInvalidRequest
	}
	if len(m.Body) == 0 && len(m.Attachments) == 0 {
		return xerrors.ErrInvalidRequest
	}
	for _, s := range m.Body {
		switch s.Type {
		case SpanText, SpanTag, SpanLink, SpanRichLink:
		case SpanMention:
			if s.UserID == "" {
				return xerrors.ErrInvalidRequest
			}
		default:
			return xerrors.ErrInvalidRequest
		}
	}
	return nil
}

// MentionedUserIDs returns mention targets in body order, duplicates kept
// (the deriver dedups per event).
func (m *Message) MentionedUserIDs() []string {
	var ids []string
	for _, s := range m.Body {
		if s.Type == SpanMention && s.UserID != "" {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

const excerptLimit = 100

// Excerpt flattens the body's textual content to at most 100 runes,
// appending an ellipsis when truncated. Mentions render as @alias.
func (m *Message) Excerpt() string {
	var out []rune
	for _, s := range m.Body {
		var part string
		switch s.Type {
		case SpanText:
			part = s.Text
		case SpanMention:
			if s.Alias != "" {
				part = "@" + s.Alias
			} else {
				part = "@" + s.UserID
			}
		case SpanTag:
			part = "#" + s.Tag
		case SpanLink, SpanRichLink:
			part = s.URL
		}
		for _, r := range part {
			if len(out) == excerptLimit {
				return string(out) + "…"
			}
			out = append(out, r)
		}
	}
	return string(out)
}
