package access

import (
	"context"
	"fmt"

	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

// Resolver authorizes message operations against the permission model of
// the targeted context.
type Resolver struct {
	perms PermissionClient
	dir   DirectoryClient
}

func NewResolver(perms PermissionClient, dir DirectoryClient) *Resolver {
	return &Resolver{perms: perms, dir: dir}
}

// Authorize confirms the acting identity (or anonymous) may perform an
// operation requiring the listed permissions in the given context.
// Direct chats check two-party membership instead of a permission set.
// Community-owned articles additionally require membership in the owning
// community; user-owned articles skip that check.
func (r *Resolver) Authorize(ctx context.Context, a domain.AccessContext, required []domain.Permission, actingUserID string) error {
	if err := a.Validate(); err != nil {
		return err
	}

	switch a.Kind {
	case domain.AccessDirectChat:
		if actingUserID == "" {
			return xerrors.ErrAuthenticationRequired
		}
		members, err := r.dir.ChatMembers(ctx, a.ChatID)
		if err != nil {
			return fmt.Errorf("resolve chat members: %w", err)
		}
		for _, m := range members {
			if m == actingUserID {
				return nil
			}
		}
		return xerrors.ErrForbidden

	case domain.AccessArticle:
		if a.OwnerCommunityID != "" {
			if actingUserID == "" {
				return xerrors.ErrAuthenticationRequired
			}
			member, err := r.dir.IsCommunityMember(ctx, a.OwnerCommunityID, actingUserID)
			if err != nil {
				return fmt.Errorf("resolve community membership: %w", err)
			}
			if !member {
				return xerrors.ErrForbidden
			}
		}
		return r.checkPermissions(ctx, a, required, actingUserID)

	case domain.AccessCommunityChannel, domain.AccessCall:
		return r.checkPermissions(ctx, a, required, actingUserID)
	}

	return xerrors.ErrInvalidRequest
}

// MinimumTrustOrThrow gates write operations behind the account trust-score
// floor, independent of per-context permissions.
func (r *Resolver) MinimumTrustOrThrow(ctx context.Context, userID string, minimum int) error {
	if userID == "" {
		return xerrors.ErrAuthenticationRequired
	}
	ok, err := r.perms.HasTrust(ctx, userID, minimum)
	if err != nil {
		return fmt.Errorf("resolve trust score: %w", err)
	}
	if !ok {
		return xerrors.ErrInsufficientTrust
	}
	return nil
}

func (r *Resolver) checkPermissions(ctx context.Context, a domain.AccessContext, required []domain.Permission, actingUserID string) error {
	ok, err := r.perms.HasPermissions(ctx, actingUserID, a, required)
	if err != nil {
		return fmt.Errorf("resolve permissions: %w", err)
	}
	if ok {
		return nil
	}
	// Anonymous without access gets an authentication prompt, never a
	// bare denial: signing in may be all that is missing.
	if actingUserID == "" {
		return xerrors.ErrAuthenticationRequired
	}
	return xerrors.ErrForbidden
}
