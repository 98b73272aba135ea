package access

import (
	"context"

	"messaging-service/internal/domain"
)

// PermissionClient is the external permission/role store. Permissions are
// queried, never recomputed here.
type PermissionClient interface {
	// HasPermissions reports whether the identity holds every listed
	// permission in the given scope. userID "" means anonymous.
	HasPermissions(ctx context.Context, userID string, scope domain.AccessContext, perms []domain.Permission) (bool, error)

	// HasTrust reports whether the account's trust score meets minimum.
	HasTrust(ctx context.Context, userID string, minimum int) (bool, error)
}

// DirectoryClient answers the membership and role-shape queries the engine
// needs around a write: chat membership, community membership, the set of
// roles that can read a channel or call, and article existence.
type DirectoryClient interface {
	ChatMembers(ctx context.Context, chatID string) ([]string, error)
	IsCommunityMember(ctx context.Context, communityID, userID string) (bool, error)

	// FilterCommunityMembers returns the subset of userIDs that are current
	// members of the community, order preserved.
	FilterCommunityMembers(ctx context.Context, communityID string, userIDs []string) ([]string, error)

	// RolesWithChannelRead returns role ids holding both channel-exists and
	// channel-read for the channel.
	RolesWithChannelRead(ctx context.Context, communityID, channelID string) ([]string, error)

	// RolesWithCallRead returns role ids holding call-read for the call.
	RolesWithCallRead(ctx context.Context, callID, channelID string) ([]string, error)

	ArticleExists(ctx context.Context, articleID string) (bool, error)
}
