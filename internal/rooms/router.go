package rooms

import (
	"context"
	"fmt"

	"messaging-service/internal/access"
	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

// Router maps an access context to the set of rooms that must receive a
// wire event for it.
type Router struct {
	dir access.DirectoryClient
}

func NewRouter(dir access.DirectoryClient) *Router {
	return &Router{dir: dir}
}

// TargetsFor resolves the room set for an access context.
//
// Community channels route to the single community-wide room when the
// public role can read the channel (cheaper fan-out), otherwise to one room
// per reader role. Calls use the same shape over call-read permission;
// scoping to active call participants is a known simplification left as is.
// Direct chats route to both member user rooms; articles to the article room.
func (r *Router) TargetsFor(ctx context.Context, a domain.AccessContext) ([]domain.RoomTarget, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	switch a.Kind {
	case domain.AccessCommunityChannel:
		roles, err := r.dir.RolesWithChannelRead(ctx, a.CommunityID, a.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve channel reader roles: %w", err)
		}
		return roleTargets(roles, a.CommunityID), nil

	case domain.AccessCall:
		roles, err := r.dir.RolesWithCallRead(ctx, a.CallID, a.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve call reader roles: %w", err)
		}
		return roleTargets(roles, a.CommunityID), nil

	case domain.AccessDirectChat:
		members, err := r.dir.ChatMembers(ctx, a.ChatID)
		if err != nil {
			return nil, fmt.Errorf("resolve chat members: %w", err)
		}
		targets := make([]domain.RoomTarget, 0, len(members))
		for _, m := range members {
			targets = append(targets, domain.UserRoom(m))
		}
		return targets, nil

	case domain.AccessArticle:
		return []domain.RoomTarget{domain.ArticleRoom(a.ArticleID)}, nil
	}

	return nil, xerrors.ErrInvalidRequest
}

func roleTargets(roles []string, communityID string) []domain.RoomTarget {
	for _, role := range roles {
		if role == domain.PublicRoleID && communityID != "" {
			return []domain.RoomTarget{domain.CommunityRoom(communityID)}
		}
	}
	targets := make([]domain.RoomTarget, 0, len(roles))
	for _, role := range roles {
		targets = append(targets, domain.RoleRoom(role))
	}
	return targets
}
