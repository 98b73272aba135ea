package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"messaging-service/internal/access"
	"messaging-service/internal/domain"
	"messaging-service/internal/notify"
	"messaging-service/internal/repository"
	"messaging-service/internal/rooms"
	"messaging-service/pkg/push"
	"messaging-service/pkg/xerrors"
)

type fakePerms struct {
	granted map[string]bool
	trusted map[string]bool
}

func (f *fakePerms) HasPermissions(_ context.Context, userID string, _ domain.AccessContext, _ []domain.Permission) (bool, error) {
	return f.granted[userID], nil
}

func (f *fakePerms) HasTrust(_ context.Context, userID string, _ int) (bool, error) {
	return f.trusted[userID], nil
}

type fakeDirectory struct {
	chatMembers  map[string][]string
	members      map[string]map[string]bool
	channelRoles []string
}

func (f *fakeDirectory) ChatMembers(_ context.Context, chatID string) ([]string, error) {
	return f.chatMembers[chatID], nil
}

func (f *fakeDirectory) IsCommunityMember(_ context.Context, communityID, userID string) (bool, error) {
	return f.members[communityID][userID], nil
}

func (f *fakeDirectory) FilterCommunityMembers(_ context.Context, communityID string, userIDs []string) ([]string, error) {
	var out []string
	for _, id := range userIDs {
		if f.members[communityID][id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeDirectory) RolesWithChannelRead(context.Context, string, string) ([]string, error) {
	return f.channelRoles, nil
}

func (f *fakeDirectory) RolesWithCallRead(context.Context, string, string) ([]string, error) {
	return f.channelRoles, nil
}

func (f *fakeDirectory) ArticleExists(context.Context, string) (bool, error) {
	return true, nil
}

type fakeMessages struct {
	repository.MessageRepository

	byID      map[string]*domain.Message
	created   []*domain.Message
	createErr error
	deleteRes *repository.DeleteResult
	reactions map[string]int // nil means the next reaction call is a no-op
}

func (f *fakeMessages) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := *m
	out.CreatedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	out.UpdatedAt = out.CreatedAt
	f.created = append(f.created, &out)
	return &out, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id string) (*domain.Message, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeMessages) Edit(_ context.Context, id string, body []domain.Span, attachments []domain.Attachment) (*domain.Message, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := *m
	out.Body = body
	out.Attachments = attachments
	editedAt := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	out.EditedAt = &editedAt
	out.UpdatedAt = editedAt
	return &out, nil
}

func (f *fakeMessages) Delete(_ context.Context, _ string) (*repository.DeleteResult, error) {
	return f.deleteRes, nil
}

func (f *fakeMessages) DeleteAllByCreator(_ context.Context, _, _ string) (*repository.DeleteResult, error) {
	return f.deleteRes, nil
}

func (f *fakeMessages) SetReaction(_ context.Context, _, _, _ string) (map[string]int, error) {
	return f.reactions, nil
}

func (f *fakeMessages) UnsetReaction(_ context.Context, _, _, _ string) (map[string]int, error) {
	return f.reactions, nil
}

type fakeInbox struct {
	repository.NotificationRepository

	stored []*domain.Notification
}

func (f *fakeInbox) CreateBatch(_ context.Context, notifications []*domain.Notification) ([]*domain.Notification, error) {
	out := make([]*domain.Notification, 0, len(notifications))
	for i, n := range notifications {
		c := *n
		c.ID = fmt.Sprintf("n%d", len(f.stored)+i+1)
		c.CreatedAt = time.Now()
		c.UpdatedAt = c.CreatedAt
		out = append(out, &c)
	}
	f.stored = append(f.stored, out...)
	return out, nil
}

type fakePushRepo struct {
	repository.PushRepository

	mu   sync.Mutex
	subs map[string][]*domain.PushSubscription
}

func (f *fakePushRepo) ActiveSubscriptions(_ context.Context, userID string) ([]*domain.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[userID], nil
}

func (f *fakePushRepo) Preference(context.Context, string, string) (*domain.NotifyPreference, error) {
	return nil, nil
}

func (f *fakePushRepo) DMEnabled(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakePushRepo) ChannelWatchers(context.Context, string) ([]string, error) {
	return nil, nil
}

type emitted struct {
	event  string
	rooms  []domain.RoomTarget
	except []domain.RoomTarget
}

type recordingBus struct {
	mu     sync.Mutex
	events []emitted
	fail   bool
}

func (b *recordingBus) Emit(_ context.Context, event string, _ any, rooms []domain.RoomTarget, except []domain.RoomTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("bus down")
	}
	b.events = append(b.events, emitted{event: event, rooms: rooms, except: except})
	return nil
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.event)
	}
	return out
}

type noopProvider struct{}

func (noopProvider) Send(context.Context, *domain.PushSubscription, push.Payload) (push.Outcome, error) {
	return push.Delivered, nil
}

type pipeline struct {
	uc       *MessageUsecase
	bus      *recordingBus
	messages *fakeMessages
	inbox    *fakeInbox
}

// newPipeline wires a usecase over fakes: one community with alice and bob
// as trusted, fully-granted members, and the public role readable on every
// channel so events collapse to the community room.
func newPipeline(messages *fakeMessages) *pipeline {
	perms := &fakePerms{
		granted: map[string]bool{"alice": true, "bob": true},
		trusted: map[string]bool{"alice": true, "bob": true},
	}
	dir := &fakeDirectory{
		members:      map[string]map[string]bool{"comm-1": {"alice": true, "bob": true}},
		channelRoles: []string{domain.PublicRoleID},
	}
	bus := &recordingBus{}
	inbox := &fakeInbox{}
	pushRepo := &fakePushRepo{}

	uc := NewMessageUsecase(
		access.NewResolver(perms, dir),
		messages,
		inbox,
		rooms.NewRouter(dir),
		bus,
		notify.NewDeriver(dir, pushRepo),
		notify.NewDispatcher(bus, pushRepo, noopProvider{}, 2),
		10,
	)
	return &pipeline{uc: uc, bus: bus, messages: messages, inbox: inbox}
}

func alice() Actor {
	return Actor{UserID: "alice", DeviceID: "dev-a", SessionID: "sess-a"}
}

func draft(id string, spans ...domain.Span) *domain.Message {
	if len(spans) == 0 {
		spans = []domain.Span{{Type: domain.SpanText, Text: "hello"}}
	}
	return &domain.Message{ID: id, Body: spans}
}

func TestCreateEmitsMessageEventBeforeNotifications(t *testing.T) {
	p := newPipeline(&fakeMessages{})
	a := domain.CommunityChannelAccess("comm-1", "chan-1")

	msg := draft("m1",
		domain.Span{Type: domain.SpanText, Text: "hey "},
		domain.Span{Type: domain.SpanMention, UserID: "bob", Alias: "Bob"},
	)
	created, err := p.uc.Create(context.Background(), alice(), a, msg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "m1" || created.ChannelID != "chan-1" || created.CreatorID != "alice" {
		t.Errorf("created = %+v", created)
	}

	want := []string{domain.EventMessageNew, domain.EventChannelLastRead, domain.EventNotificationNew}
	got := p.bus.names()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	// The raw message event targets the collapsed community room and
	// excludes the writer's own session.
	first := p.bus.events[0]
	if len(first.rooms) != 1 || first.rooms[0] != domain.CommunityRoom("comm-1") {
		t.Errorf("message:new rooms = %v, want community room", first.rooms)
	}
	if len(first.except) != 1 || first.except[0] != domain.SessionRoom("sess-a") {
		t.Errorf("message:new except = %v, want writer's session room", first.except)
	}

	if len(p.inbox.stored) != 1 || p.inbox.stored[0].UserID != "bob" || p.inbox.stored[0].Type != domain.NotifyMention {
		t.Errorf("inbox = %+v, want one MENTION for bob", p.inbox.stored)
	}
}

func TestCreateDeniedNeverPersists(t *testing.T) {
	messages := &fakeMessages{}
	p := newPipeline(messages)
	a := domain.CommunityChannelAccess("comm-1", "chan-1")

	intruder := Actor{UserID: "mallory", DeviceID: "dev-m", SessionID: "sess-m"}
	_, err := p.uc.Create(context.Background(), intruder, a, draft("m1"))
	if !errors.Is(err, xerrors.ErrInsufficientTrust) {
		t.Fatalf("untrusted creator error = %v, want ErrInsufficientTrust", err)
	}

	// Trusted but not permitted.
	p2 := newPipeline(messages)
	p2.uc.resolver = access.NewResolver(
		&fakePerms{trusted: map[string]bool{"mallory": true}},
		&fakeDirectory{},
	)
	_, err = p2.uc.Create(context.Background(), intruder, a, draft("m1"))
	if !errors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("unpermitted creator error = %v, want ErrForbidden", err)
	}

	if len(messages.created) != 0 {
		t.Errorf("denied create persisted %d messages", len(messages.created))
	}
}

func TestCreateSurvivesTailFailure(t *testing.T) {
	p := newPipeline(&fakeMessages{})
	p.bus.fail = true

	created, err := p.uc.Create(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), draft("m1"))
	if err != nil {
		t.Fatalf("Create() error = %v, want nil despite tail failure", err)
	}
	if created == nil || created.ID != "m1" {
		t.Errorf("created = %+v", created)
	}
}

func TestCreateSurfacesDuplicateID(t *testing.T) {
	p := newPipeline(&fakeMessages{createErr: xerrors.ErrAlreadyExists})

	_, err := p.uc.Create(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), draft("m1"))
	if !errors.Is(err, xerrors.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want ErrAlreadyExists", err)
	}
}

func TestEditRederivesNotificationsForNewMentions(t *testing.T) {
	messages := &fakeMessages{
		byID: map[string]*domain.Message{
			"m1": {
				ID: "m1", CreatorID: "alice", ChannelID: "chan-1",
				Body: []domain.Span{{Type: domain.SpanText, Text: "hello"}},
			},
		},
	}
	p := newPipeline(messages)
	a := domain.CommunityChannelAccess("comm-1", "chan-1")

	newBody := []domain.Span{
		{Type: domain.SpanText, Text: "hello "},
		{Type: domain.SpanMention, UserID: "bob", Alias: "Bob"},
	}
	updated, err := p.uc.Edit(context.Background(), alice(), a, "m1", newBody, nil)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if updated.EditedAt == nil {
		t.Error("edited message missing EditedAt")
	}

	want := []string{domain.EventMessageUpdate, domain.EventNotificationNew}
	got := p.bus.names()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	first := p.bus.events[0]
	if len(first.rooms) != 1 || first.rooms[0] != domain.CommunityRoom("comm-1") {
		t.Errorf("message:update rooms = %v, want community room", first.rooms)
	}
	if len(first.except) != 1 || first.except[0] != domain.SessionRoom("sess-a") {
		t.Errorf("message:update except = %v, want writer's session room", first.except)
	}

	if len(p.inbox.stored) != 1 || p.inbox.stored[0].UserID != "bob" || p.inbox.stored[0].Type != domain.NotifyMention {
		t.Errorf("inbox = %+v, want one MENTION for bob from the edit", p.inbox.stored)
	}
}

func TestDeleteEmitsOneDeleteAndPerOrphanUpdates(t *testing.T) {
	messages := &fakeMessages{
		byID: map[string]*domain.Message{
			"m1": {ID: "m1", CreatorID: "alice", ChannelID: "chan-1"},
		},
		deleteRes: &repository.DeleteResult{
			ChannelID:   "chan-1",
			DeletedIDs:  []string{"m1"},
			OrphanedIDs: []string{"c1", "c2"},
		},
	}
	p := newPipeline(messages)

	res, err := p.uc.Delete(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), "m1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(res.OrphanedIDs) != 2 {
		t.Fatalf("orphans = %v", res.OrphanedIDs)
	}

	want := []string{domain.EventMessageDelete, domain.EventMessageUpdate, domain.EventMessageUpdate}
	got := p.bus.names()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestDeleteInWrongChannelIsNotFound(t *testing.T) {
	messages := &fakeMessages{
		byID: map[string]*domain.Message{
			"m1": {ID: "m1", CreatorID: "alice", ChannelID: "chan-other"},
		},
	}
	p := newPipeline(messages)

	_, err := p.uc.Delete(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), "m1")
	if !errors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("cross-channel delete error = %v, want ErrNotFound", err)
	}
}

func TestReactionNoOpEmitsNothing(t *testing.T) {
	p := newPipeline(&fakeMessages{reactions: nil})

	got, err := p.uc.SetReaction(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), "m1", "👍")
	if err != nil {
		t.Fatalf("SetReaction() error = %v", err)
	}
	if got != nil {
		t.Errorf("no-op reaction returned %v, want nil", got)
	}
	if names := p.bus.names(); len(names) != 0 {
		t.Errorf("no-op reaction emitted %v", names)
	}
}

func TestReactionChangeEmitsUpdate(t *testing.T) {
	p := newPipeline(&fakeMessages{reactions: map[string]int{"👍": 1}})

	got, err := p.uc.SetReaction(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), "m1", "👍")
	if err != nil {
		t.Fatalf("SetReaction() error = %v", err)
	}
	if got["👍"] != 1 {
		t.Errorf("counters = %v", got)
	}
	names := p.bus.names()
	if len(names) != 1 || names[0] != domain.EventMessageUpdate {
		t.Errorf("events = %v, want one message:update", names)
	}
}

func TestCreateReplyToMissingParentStillPosts(t *testing.T) {
	p := newPipeline(&fakeMessages{})
	parentID := "gone"
	msg := draft("m2")
	msg.ParentMessageID = &parentID

	created, err := p.uc.Create(context.Background(), alice(),
		domain.CommunityChannelAccess("comm-1", "chan-1"), msg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "m2" {
		t.Errorf("created = %+v", created)
	}
	if len(p.inbox.stored) != 0 {
		t.Errorf("reply to missing parent derived %+v", p.inbox.stored)
	}
}
