package access

import (
	"context"
	"errors"
	"testing"

	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

type fakePerms struct {
	granted map[string]bool // userID -> has all permissions
	trusted map[string]bool
}

func (f *fakePerms) HasPermissions(_ context.Context, userID string, _ domain.AccessContext, _ []domain.Permission) (bool, error) {
	return f.granted[userID], nil
}

func (f *fakePerms) HasTrust(_ context.Context, userID string, _ int) (bool, error) {
	return f.trusted[userID], nil
}

type fakeDirectory struct {
	chatMembers      map[string][]string
	communityMembers map[string]map[string]bool
}

func (f *fakeDirectory) ChatMembers(_ context.Context, chatID string) ([]string, error) {
	return f.chatMembers[chatID], nil
}

func (f *fakeDirectory) IsCommunityMember(_ context.Context, communityID, userID string) (bool, error) {
	return f.communityMembers[communityID][userID], nil
}

func (f *fakeDirectory) FilterCommunityMembers(_ context.Context, communityID string, userIDs []string) ([]string, error) {
	var out []string
	for _, id := range userIDs {
		if f.communityMembers[communityID][id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeDirectory) RolesWithChannelRead(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeDirectory) RolesWithCallRead(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeDirectory) ArticleExists(context.Context, string) (bool, error) {
	return true, nil
}

func TestAuthorizeCommunityChannel(t *testing.T) {
	perms := &fakePerms{granted: map[string]bool{"alice": true}}
	r := NewResolver(perms, &fakeDirectory{})

	a := domain.CommunityChannelAccess("comm-1", "chan-1")
	required := []domain.Permission{domain.PermChannelRead, domain.PermChannelWrite}

	tests := []struct {
		name    string
		userID  string
		wantErr error
	}{
		{name: "granted user passes", userID: "alice", wantErr: nil},
		{name: "denied user is forbidden", userID: "bob", wantErr: xerrors.ErrForbidden},
		{name: "anonymous without access needs auth", userID: "", wantErr: xerrors.ErrAuthenticationRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Authorize(context.Background(), a, required, tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authorize() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthorizeDirectChatUsesMembership(t *testing.T) {
	dir := &fakeDirectory{chatMembers: map[string][]string{
		"chat-1": {"alice", "bob"},
	}}
	// No permissions granted to anyone: direct chats must not consult them.
	r := NewResolver(&fakePerms{}, dir)

	a := domain.DirectChatAccess("chat-1", "chan-dm")

	if err := r.Authorize(context.Background(), a, nil, "alice"); err != nil {
		t.Fatalf("member should pass, got %v", err)
	}
	if err := r.Authorize(context.Background(), a, nil, "mallory"); !errors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("non-member = %v, want ErrForbidden", err)
	}
	if err := r.Authorize(context.Background(), a, nil, ""); !errors.Is(err, xerrors.ErrAuthenticationRequired) {
		t.Fatalf("anonymous = %v, want ErrAuthenticationRequired", err)
	}
}

func TestAuthorizeArticleOwnership(t *testing.T) {
	perms := &fakePerms{granted: map[string]bool{"alice": true, "bob": true}}
	dir := &fakeDirectory{communityMembers: map[string]map[string]bool{
		"comm-1": {"alice": true},
	}}
	r := NewResolver(perms, dir)
	required := []domain.Permission{domain.PermArticleWrite}

	communityOwned := domain.CommunityArticleAccess("art-1", "chan-a", "comm-1")
	if err := r.Authorize(context.Background(), communityOwned, required, "alice"); err != nil {
		t.Fatalf("community member should pass, got %v", err)
	}
	if err := r.Authorize(context.Background(), communityOwned, required, "bob"); !errors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("non-member on community article = %v, want ErrForbidden", err)
	}

	// User-owned articles skip the membership check entirely.
	userOwned := domain.UserArticleAccess("art-2", "chan-b", "carol")
	if err := r.Authorize(context.Background(), userOwned, required, "bob"); err != nil {
		t.Fatalf("user-owned article should skip membership, got %v", err)
	}
}

func TestMinimumTrustOrThrow(t *testing.T) {
	r := NewResolver(&fakePerms{trusted: map[string]bool{"alice": true}}, &fakeDirectory{})

	if err := r.MinimumTrustOrThrow(context.Background(), "alice", 10); err != nil {
		t.Fatalf("trusted user should pass, got %v", err)
	}
	if err := r.MinimumTrustOrThrow(context.Background(), "bob", 10); !errors.Is(err, xerrors.ErrInsufficientTrust) {
		t.Fatalf("untrusted = %v, want ErrInsufficientTrust", err)
	}
	if err := r.MinimumTrustOrThrow(context.Background(), "", 10); !errors.Is(err, xerrors.ErrAuthenticationRequired) {
		t.Fatalf("anonymous = %v, want ErrAuthenticationRequired", err)
	}
}

func TestAuthorizeRejectsMalformedContext(t *testing.T) {
	r := NewResolver(&fakePerms{granted: map[string]bool{"alice": true}}, &fakeDirectory{})

	malformed := domain.AccessContext{
		Kind:        domain.AccessCommunityChannel,
		ChannelID:   "chan-1",
		CommunityID: "comm-1",
		ChatID:      "chat-1", // second discriminator set
	}
	if err := r.Authorize(context.Background(), malformed, nil, "alice"); !errors.Is(err, xerrors.ErrInvalidRequest) {
		t.Fatalf("malformed context = %v, want ErrInvalidRequest", err)
	}
}
