package notify

import (
	"context"
	"fmt"
	"log"

	"messaging-service/internal/access"
	"messaging-service/internal/domain"
	"messaging-service/internal/repository"
)

// Deriver turns one created/edited message into candidate notifications.
//
// Rules run in priority order against a set scoped to this single
// triggering event: parent reply, then direct-chat fan-out, then mentions,
// then broad channel opt-ins. A recipient matched by an earlier rule is
// never matched again, so each user gets at most one notification per
// message no matter how many rules apply.
type Deriver struct {
	dir  access.DirectoryClient
	push repository.PushRepository
}

func NewDeriver(dir access.DirectoryClient, push repository.PushRepository) *Deriver {
	return &Deriver{dir: dir, push: push}
}

func (d *Deriver) Derive(ctx context.Context, msg *domain.Message, parent *domain.Message, a domain.AccessContext) ([]*domain.Notification, error) {
	notified := map[string]struct{}{
		// The sender never notifies themselves.
		msg.CreatorID: {},
	}
	var out []*domain.Notification

	emit := func(userID string, typ domain.NotificationType) {
		notified[userID] = struct{}{}
		out = append(out, d.build(userID, typ, msg, a))
	}

	// 1. Reply to the parent author. Article threads re-resolve the
	// article first: a comment on a vanished article notifies nobody.
	if parent != nil && parent.CreatorID != msg.CreatorID {
		if _, done := notified[parent.CreatorID]; !done {
			switch a.Kind {
			case domain.AccessCommunityChannel, domain.AccessCall:
				emit(parent.CreatorID, domain.NotifyReply)
			case domain.AccessArticle:
				exists, err := d.dir.ArticleExists(ctx, a.ArticleID)
				if err != nil {
					return nil, fmt.Errorf("resolve article: %w", err)
				}
				if exists {
					emit(parent.CreatorID, domain.NotifyReply)
				}
			}
		}
	}

	// 2. Direct chats notify every other member.
	if a.Kind == domain.AccessDirectChat {
		members, err := d.dir.ChatMembers(ctx, a.ChatID)
		if err != nil {
			return nil, fmt.Errorf("resolve chat members: %w", err)
		}
		for _, m := range members {
			if _, done := notified[m]; done {
				continue
			}
			emit(m, domain.NotifyDM)
		}
	}

	// 3. Mentions (community context only in the current model).
	if a.Kind == domain.AccessCommunityChannel {
		for _, userID := range msg.MentionedUserIDs() {
			if _, done := notified[userID]; done {
				continue
			}
			emit(userID, domain.NotifyMention)
		}
	}

	// 4. Broad per-channel opt-ins (always, or while pinned).
	if a.Kind == domain.AccessCommunityChannel {
		watchers, err := d.push.ChannelWatchers(ctx, a.ChannelID)
		if err != nil {
			// Watcher lookup failing degrades to mention/reply-only.
			log.Printf("[derive] channel watchers lookup failed for %s: %v", a.ChannelID, err)
		}
		for _, userID := range watchers {
			if _, done := notified[userID]; done {
				continue
			}
			emit(userID, domain.NotifyChannelMessage)
		}
	}

	// 5. Community contexts never notify non-members, however a candidate
	// was matched. Community-owned article threads count: a parent author
	// who left the owning community is dropped here too.
	var communityID string
	switch {
	case a.Kind == domain.AccessCommunityChannel:
		communityID = a.CommunityID
	case a.Kind == domain.AccessArticle && a.OwnerCommunityID != "":
		communityID = a.OwnerCommunityID
	}
	if communityID != "" && len(out) > 0 {
		candidates := make([]string, 0, len(out))
		for _, n := range out {
			candidates = append(candidates, n.UserID)
		}
		members, err := d.dir.FilterCommunityMembers(ctx, communityID, candidates)
		if err != nil {
			return nil, fmt.Errorf("filter community members: %w", err)
		}
		memberSet := make(map[string]struct{}, len(members))
		for _, m := range members {
			memberSet[m] = struct{}{}
		}
		kept := out[:0]
		for _, n := range out {
			if _, ok := memberSet[n.UserID]; ok {
				kept = append(kept, n)
			}
		}
		out = kept
	}

	return out, nil
}

func (d *Deriver) build(userID string, typ domain.NotificationType, msg *domain.Message, a domain.AccessContext) *domain.Notification {
	n := &domain.Notification{
		UserID:        userID,
		Type:          typ,
		SubjectItemID: msg.ID,
		SubjectUserID: msg.CreatorID,
		Text:          msg.Excerpt(),
		ExtraData: map[string]any{
			"channelId":   msg.ChannelID,
			"senderAlias": msg.CreatorAlias,
		},
	}
	switch a.Kind {
	case domain.AccessCommunityChannel:
		n.SubjectCommunityID = a.CommunityID
	case domain.AccessArticle:
		n.SubjectArticleID = a.ArticleID
		if a.OwnerCommunityID != "" {
			n.SubjectCommunityID = a.OwnerCommunityID
		}
	case domain.AccessDirectChat:
		n.ExtraData["chatId"] = a.ChatID
	case domain.AccessCall:
		n.ExtraData["callId"] = a.CallID
	}
	return n
}
