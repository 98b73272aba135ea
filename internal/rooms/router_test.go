package rooms

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

type fakeDirectory struct {
	channelRoles []string
	callRoles    []string
	chatMembers  []string
}

func (f *fakeDirectory) ChatMembers(context.Context, string) ([]string, error) {
	return f.chatMembers, nil
}

func (f *fakeDirectory) IsCommunityMember(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeDirectory) FilterCommunityMembers(_ context.Context, _ string, ids []string) ([]string, error) {
	return ids, nil
}

func (f *fakeDirectory) RolesWithChannelRead(context.Context, string, string) ([]string, error) {
	return f.channelRoles, nil
}

func (f *fakeDirectory) RolesWithCallRead(context.Context, string, string) ([]string, error) {
	return f.callRoles, nil
}

func (f *fakeDirectory) ArticleExists(context.Context, string) (bool, error) {
	return true, nil
}

func TestTargetsForCommunityChannel(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  []domain.RoomTarget
	}{
		{
			name:  "public role collapses to single community room",
			roles: []string{"mods", domain.PublicRoleID, "vips"},
			want:  []domain.RoomTarget{domain.CommunityRoom("comm-1")},
		},
		{
			name:  "restricted channel routes per role",
			roles: []string{"mods", "vips"},
			want:  []domain.RoomTarget{domain.RoleRoom("mods"), domain.RoleRoom("vips")},
		},
		{
			name:  "no reader roles routes nowhere",
			roles: nil,
			want:  []domain.RoomTarget{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(&fakeDirectory{channelRoles: tt.roles})
			got, err := r.TargetsFor(context.Background(), domain.CommunityChannelAccess("comm-1", "chan-1"))
			if err != nil {
				t.Fatalf("TargetsFor() error = %v", err)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TargetsFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTargetsForDirectChat(t *testing.T) {
	r := NewRouter(&fakeDirectory{chatMembers: []string{"alice", "bob"}})

	got, err := r.TargetsFor(context.Background(), domain.DirectChatAccess("chat-1", "chan-dm"))
	if err != nil {
		t.Fatalf("TargetsFor() error = %v", err)
	}
	want := []domain.RoomTarget{domain.UserRoom("alice"), domain.UserRoom("bob")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TargetsFor() = %v, want %v", got, want)
	}
}

func TestTargetsForArticle(t *testing.T) {
	r := NewRouter(&fakeDirectory{})

	got, err := r.TargetsFor(context.Background(), domain.UserArticleAccess("art-1", "chan-a", "carol"))
	if err != nil {
		t.Fatalf("TargetsFor() error = %v", err)
	}
	want := []domain.RoomTarget{domain.ArticleRoom("art-1")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TargetsFor() = %v, want %v", got, want)
	}
}

func TestTargetsForCall(t *testing.T) {
	r := NewRouter(&fakeDirectory{callRoles: []string{"speakers", "listeners"}})

	got, err := r.TargetsFor(context.Background(), domain.CallAccess("call-1", "chan-c"))
	if err != nil {
		t.Fatalf("TargetsFor() error = %v", err)
	}
	want := []domain.RoomTarget{domain.RoleRoom("speakers"), domain.RoleRoom("listeners")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TargetsFor() = %v, want %v", got, want)
	}
}

func TestTargetsForRejectsMalformedContext(t *testing.T) {
	r := NewRouter(&fakeDirectory{})

	_, err := r.TargetsFor(context.Background(), domain.AccessContext{Kind: "bogus", ChannelID: "c"})
	if !errors.Is(err, xerrors.ErrInvalidRequest) {
		t.Fatalf("TargetsFor() = %v, want ErrInvalidRequest", err)
	}
}
