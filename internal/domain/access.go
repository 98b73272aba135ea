package domain

import (
	"fmt"

	"messaging-service/pkg/xerrors"
)

// AccessKind discriminates the context a message lives in. Every context
// wraps a channel; the kind decides which permission set and which
// audience-resolution rules apply.
type AccessKind string

const (
	AccessCommunityChannel AccessKind = "community_channel"
	AccessCall             AccessKind = "call"
	AccessDirectChat       AccessKind = "direct_chat"
	AccessArticle          AccessKind = "article"
)

// AccessContext identifies the single context targeted by an operation.
// Exactly one kind discriminator may be set; articles additionally carry
// exactly one owner (a community or a user).
type AccessContext struct {
	Kind      AccessKind `json:"kind"`
	ChannelID string     `json:"channelId"`

	CommunityID string `json:"communityId,omitempty"`
	CallID      string `json:"callId,omitempty"`
	ChatID      string `json:"chatId,omitempty"`
	ArticleID   string `json:"articleId,omitempty"`

	OwnerCommunityID string `json:"ownerCommunityId,omitempty"`
	OwnerUserID      string `json:"ownerUserId,omitempty"`
}

func CommunityChannelAccess(communityID, channelID string) AccessContext {
	return AccessContext{Kind: AccessCommunityChannel, CommunityID: communityID, ChannelID: channelID}
}

func CallAccess(callID, channelID string) AccessContext {
	return AccessContext{Kind: AccessCall, CallID: callID, ChannelID: channelID}
}

func DirectChatAccess(chatID, channelID string) AccessContext {
	return AccessContext{Kind: AccessDirectChat, ChatID: chatID, ChannelID: channelID}
}

func CommunityArticleAccess(articleID, channelID, ownerCommunityID string) AccessContext {
	return AccessContext{Kind: AccessArticle, ArticleID: articleID, ChannelID: channelID, OwnerCommunityID: ownerCommunityID}
}

func UserArticleAccess(articleID, channelID, ownerUserID string) AccessContext {
	return AccessContext{Kind: AccessArticle, ArticleID: articleID, ChannelID: channelID, OwnerUserID: ownerUserID}
}

// Validate rejects contexts that name no channel, set a discriminator
// that does not match the kind, or set more than one discriminator.
func (a AccessContext) Validate() error {
	if a.ChannelID == "" {
		return fmt.Errorf("access context missing channel: %w", xerrors.ErrInvalidRequest)
	}

	var want string
	switch a.Kind {
	case AccessCommunityChannel:
		want = a.CommunityID
	case AccessCall:
		want = a.CallID
	case AccessDirectChat:
		want = a.ChatID
	case AccessArticle:
		want = a.ArticleID
	default:
		return fmt.Errorf("unknown access kind %q: %w", a.Kind, xerrors.ErrInvalidRequest)
	}
	if want == "" {
		return fmt.Errorf("access context missing %s id: %w", a.Kind, xerrors.ErrInvalidRequest)
	}

	set := 0
	for _, id := range []string{a.CommunityID, a.CallID, a.ChatID, a.ArticleID} {
		if id != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("access context sets %d discriminators: %w", set, xerrors.ErrInvalidRequest)
	}

	if a.Kind == AccessArticle {
		if (a.OwnerCommunityID == "") == (a.OwnerUserID == "") {
			return fmt.Errorf("article context needs exactly one owner: %w", xerrors.ErrInvalidRequest)
		}
	} else if a.OwnerCommunityID != "" || a.OwnerUserID != "" {
		return fmt.Errorf("owner fields are article-only: %w", xerrors.ErrInvalidRequest)
	}

	return nil
}

// Permission names a capability checked against the access service for
// the targeted context.
type Permission string

const (
	PermChannelExists Permission = "channel.exists"
	PermChannelRead   Permission = "channel.read"
	PermChannelWrite  Permission = "channel.write"
	PermCallRead      Permission = "call.read"
	PermCallWrite     Permission = "call.write"
	PermArticleRead   Permission = "article.read"
	PermArticleWrite  Permission = "article.write"
	PermModerate      Permission = "channel.moderate"
)

// PublicRoleID is the directory's well-known identifier for the role every
// community member implicitly holds.
const PublicRoleID = "public"
