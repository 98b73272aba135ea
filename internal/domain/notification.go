package domain

import "time"

// NotificationType defines the category of a derived notification.
type NotificationType string

const (
	NotifyMention        NotificationType = "MENTION"
	NotifyReply          NotificationType = "REPLY"
	NotifyDM             NotificationType = "DM"
	NotifyChannelMessage NotificationType = "CHANNEL_MESSAGE"
	NotifyFollower       NotificationType = "FOLLOWER"
	NotifyApproval       NotificationType = "APPROVAL"
	NotifyCall           NotificationType = "CALL"
)

// Ephemeral reports whether the type is live/push-delivery only and never
// written to the durable inbox.
func (t NotificationType) Ephemeral() bool {
	return t == NotifyDM || t == NotifyChannelMessage
}

// Notification is one per-user inbox entry (or, for ephemeral types, a
// transient delivery instruction with a locally synthesized id).
type Notification struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"userId"`
	Type               NotificationType `json:"type"`
	SubjectItemID      string           `json:"subjectItemId,omitempty"`
	SubjectCommunityID string           `json:"subjectCommunityId,omitempty"`
	SubjectUserID      string           `json:"subjectUserId,omitempty"`
	SubjectArticleID   string           `json:"subjectArticleId,omitempty"`
	Text               string           `json:"text,omitempty"`
	ExtraData          map[string]any   `json:"extraData,omitempty"`
	Read               bool             `json:"read"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	DeletedAt          *time.Time       `json:"deletedAt,omitempty"`
}

// PushSubscription is one device's opaque push target.
type PushSubscription struct {
	DeviceID  string    `json:"deviceId"`
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	Keys      string    `json:"keys"` // opaque provider payload, stored verbatim
	CreatedAt time.Time `json:"createdAt"`
}

// NotifyPreference holds a user's per-community notification-kind flags.
// Absence of a row means "no pushes for this community" (never default-on).
type NotifyPreference struct {
	UserID      string `json:"userId"`
	CommunityID string `json:"communityId"`
	Mentions    bool   `json:"mentions"`
	Replies     bool   `json:"replies"`
	Posts       bool   `json:"posts"`
	Events      bool   `json:"events"`
	Calls       bool   `json:"calls"`
}

// AllowsPush reports whether the per-kind flag admits a push for t.
func (p *NotifyPreference) AllowsPush(t NotificationType) bool {
	if p == nil {
		return false
	}
	switch t {
	case NotifyMention:
		return p.Mentions
	case NotifyReply:
		return p.Replies
	case NotifyChannelMessage:
		return p.Posts
	case NotifyCall:
		return p.Calls
	case NotifyFollower, NotifyApproval:
		return p.Events
	default:
		return false
	}
}

// ChannelWatchMode is a user's broad per-channel notification opt-in.
type ChannelWatchMode string

const (
	WatchAlways      ChannelWatchMode = "always"
	WatchWhilePinned ChannelWatchMode = "while_pinned"
)
