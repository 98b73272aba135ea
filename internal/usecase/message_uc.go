package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/access"
	"messaging-service/internal/domain"
	"messaging-service/internal/notify"
	"messaging-service/internal/repository"
	"messaging-service/internal/rooms"
	"messaging-service/pkg/roombus"
	"messaging-service/pkg/xerrors"
)

// Actor is the acting identity plus the device/session that originated the
// request, used to avoid echoing the writer's own action back.
type Actor struct {
	UserID    string
	DeviceID  string
	SessionID string
}

// MessageUsecase runs the create/edit/delete pipeline: authorize against
// the context's permission model, persist, fan the raw event out to rooms,
// derive notifications, store the durable subset and dispatch deliveries.
type MessageUsecase struct {
	resolver   *access.Resolver
	messages   repository.MessageRepository
	inbox      repository.NotificationRepository
	router     *rooms.Router
	bus        roombus.Bus
	deriver    *notify.Deriver
	dispatcher *notify.Dispatcher
	minTrust   int
}

func NewMessageUsecase(
	resolver *access.Resolver,
	messages repository.MessageRepository,
	inbox repository.NotificationRepository,
	router *rooms.Router,
	bus roombus.Bus,
	deriver *notify.Deriver,
	dispatcher *notify.Dispatcher,
	minTrust int,
) *MessageUsecase {
	return &MessageUsecase{
		resolver:   resolver,
		messages:   messages,
		inbox:      inbox,
		router:     router,
		bus:        bus,
		deriver:    deriver,
		dispatcher: dispatcher,
		minTrust:   minTrust,
	}
}

func writePermissions(a domain.AccessContext) []domain.Permission {
	switch a.Kind {
	case domain.AccessCommunityChannel:
		return []domain.Permission{domain.PermChannelExists, domain.PermChannelRead, domain.PermChannelWrite}
	case domain.AccessCall:
		return []domain.Permission{domain.PermCallRead, domain.PermCallWrite}
	case domain.AccessArticle:
		return []domain.Permission{domain.PermArticleRead, domain.PermArticleWrite}
	default:
		return nil
	}
}

func readPermissions(a domain.AccessContext) []domain.Permission {
	switch a.Kind {
	case domain.AccessCommunityChannel:
		return []domain.Permission{domain.PermChannelExists, domain.PermChannelRead}
	case domain.AccessCall:
		return []domain.Permission{domain.PermCallRead}
	case domain.AccessArticle:
		return []domain.Permission{domain.PermArticleRead}
	default:
		return nil
	}
}

// Create authorizes and persists a new message, then best-effort runs the
// fan-out tail. The message id is caller supplied; retries with the same id
// surface ErrAlreadyExists instead of duplicating.
func (uc *MessageUsecase) Create(ctx context.Context, actor Actor, a domain.AccessContext, m *domain.Message) (*domain.Message, error) {
	if err := uc.resolver.MinimumTrustOrThrow(ctx, actor.UserID, uc.minTrust); err != nil {
		return nil, err
	}
	if err := uc.resolver.Authorize(ctx, a, writePermissions(a), actor.UserID); err != nil {
		return nil, err
	}

	m.CreatorID = actor.UserID
	m.ChannelID = a.ChannelID
	if err := m.Validate(); err != nil {
		return nil, err
	}

	// The parent reference is weak: a reply to an already-deleted parent
	// still posts, it just notifies nobody about a reply.
	var parent *domain.Message
	if m.ParentMessageID != nil {
		p, err := uc.messages.GetByID(ctx, *m.ParentMessageID)
		if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		parent = p
	}

	created, err := uc.messages.Create(ctx, m)
	if err != nil {
		return nil, err
	}

	uc.afterWrite(actor, a, func(ctx context.Context, targets []domain.RoomTarget, except []domain.RoomTarget) error {
		if err := uc.bus.Emit(ctx, domain.EventMessageNew, created, targets, except); err != nil {
			return fmt.Errorf("emit message:new: %w", err)
		}

		lastRead := domain.ChannelLastRead{
			ChannelID: created.ChannelID,
			UserID:    created.CreatorID,
			LastRead:  created.CreatedAt,
		}
		if err := uc.bus.Emit(ctx, domain.EventChannelLastRead, lastRead,
			[]domain.RoomTarget{domain.UserRoom(created.CreatorID)}, except); err != nil {
			log.Printf("[pipeline] emit channel:lastRead failed: %v", err)
		}

		uc.notifyTail(ctx, actor, a, created, parent)
		return nil
	})

	return created, nil
}

// Edit updates body/attachments and re-runs derivation so mentions added by
// the edit still notify.
func (uc *MessageUsecase) Edit(ctx context.Context, actor Actor, a domain.AccessContext, id string, body []domain.Span, attachments []domain.Attachment) (*domain.Message, error) {
	existing, err := uc.authorizeMutation(ctx, actor, a, id)
	if err != nil {
		return nil, err
	}

	var parent *domain.Message
	if existing.ParentMessageID != nil {
		p, err := uc.messages.GetByID(ctx, *existing.ParentMessageID)
		if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		parent = p
	}

	updated, err := uc.messages.Edit(ctx, id, body, attachments)
	if err != nil {
		return nil, err
	}

	uc.afterWrite(actor, a, func(ctx context.Context, targets []domain.RoomTarget, except []domain.RoomTarget) error {
		update := domain.MessageUpdate{
			ID:          updated.ID,
			ChannelID:   updated.ChannelID,
			Body:        &updated.Body,
			Attachments: &updated.Attachments,
			EditedAt:    updated.EditedAt,
		}
		if err := uc.bus.Emit(ctx, domain.EventMessageUpdate, update, targets, except); err != nil {
			return fmt.Errorf("emit message:update: %w", err)
		}
		uc.notifyTail(ctx, actor, a, updated, parent)
		return nil
	})

	return updated, nil
}

// Delete soft-deletes one message. The repository clears children's parent
// references in the same transaction; the tail mirrors that as one delete
// event plus one update event per orphaned child.
func (uc *MessageUsecase) Delete(ctx context.Context, actor Actor, a domain.AccessContext, id string) (*repository.DeleteResult, error) {
	if _, err := uc.authorizeMutation(ctx, actor, a, id); err != nil {
		return nil, err
	}

	res, err := uc.messages.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	uc.emitDeleteEvents(actor, a, res)
	return res, nil
}

// DeleteAllByCreator removes every message by one creator in the channel,
// a moderation bulk action under the same orphaning contract as Delete.
func (uc *MessageUsecase) DeleteAllByCreator(ctx context.Context, actor Actor, a domain.AccessContext, creatorID string) (*repository.DeleteResult, error) {
	perms := writePermissions(a)
	if creatorID != actor.UserID {
		perms = append(perms, domain.PermModerate)
	}
	if err := uc.resolver.Authorize(ctx, a, perms, actor.UserID); err != nil {
		return nil, err
	}

	res, err := uc.messages.DeleteAllByCreator(ctx, a.ChannelID, creatorID)
	if err != nil {
		return nil, err
	}

	uc.emitDeleteEvents(actor, a, res)
	return res, nil
}

func (uc *MessageUsecase) emitDeleteEvents(actor Actor, a domain.AccessContext, res *repository.DeleteResult) {
	uc.afterWrite(actor, a, func(ctx context.Context, targets []domain.RoomTarget, except []domain.RoomTarget) error {
		del := domain.MessageDelete{IDs: res.DeletedIDs, ChannelID: res.ChannelID}
		if err := uc.bus.Emit(ctx, domain.EventMessageDelete, del, targets, except); err != nil {
			return fmt.Errorf("emit message:delete: %w", err)
		}
		for _, childID := range res.OrphanedIDs {
			update := domain.MessageUpdate{
				ID:            childID,
				ChannelID:     res.ChannelID,
				ParentCleared: true,
			}
			if err := uc.bus.Emit(ctx, domain.EventMessageUpdate, update, targets, except); err != nil {
				log.Printf("[pipeline] emit orphan update for %s failed: %v", childID, err)
			}
		}
		return nil
	})
}

// SetReaction and UnsetReaction are idempotent: a redundant call returns
// nil counters and emits no event.
func (uc *MessageUsecase) SetReaction(ctx context.Context, actor Actor, a domain.AccessContext, messageID, symbol string) (map[string]int, error) {
	return uc.react(ctx, actor, a, messageID, func(ctx context.Context) (map[string]int, error) {
		return uc.messages.SetReaction(ctx, messageID, actor.UserID, symbol)
	})
}

func (uc *MessageUsecase) UnsetReaction(ctx context.Context, actor Actor, a domain.AccessContext, messageID, symbol string) (map[string]int, error) {
	return uc.react(ctx, actor, a, messageID, func(ctx context.Context) (map[string]int, error) {
		return uc.messages.UnsetReaction(ctx, messageID, actor.UserID, symbol)
	})
}

func (uc *MessageUsecase) react(ctx context.Context, actor Actor, a domain.AccessContext, messageID string, op func(context.Context) (map[string]int, error)) (map[string]int, error) {
	if err := uc.resolver.Authorize(ctx, a, readPermissions(a), actor.UserID); err != nil {
		return nil, err
	}

	reactions, err := op(ctx)
	if err != nil {
		return nil, err
	}
	if reactions == nil {
		// No-op: nothing changed, nothing to emit.
		return nil, nil
	}

	uc.afterWrite(actor, a, func(ctx context.Context, targets []domain.RoomTarget, except []domain.RoomTarget) error {
		update := domain.MessageUpdate{
			ID:        messageID,
			ChannelID: a.ChannelID,
			Reactions: &reactions,
		}
		return uc.bus.Emit(ctx, domain.EventMessageUpdate, update, targets, except)
	})

	return reactions, nil
}

func (uc *MessageUsecase) LoadRange(ctx context.Context, actor Actor, a domain.AccessContext, before time.Time, limit int) ([]*domain.Message, error) {
	if err := uc.resolver.Authorize(ctx, a, readPermissions(a), actor.UserID); err != nil {
		return nil, err
	}
	if before.IsZero() {
		before = time.Now()
	}
	return uc.messages.LoadRange(ctx, a.ChannelID, before, limit)
}

func (uc *MessageUsecase) LoadByIDs(ctx context.Context, actor Actor, a domain.AccessContext, ids []string) ([]*domain.Message, error) {
	if err := uc.resolver.Authorize(ctx, a, readPermissions(a), actor.UserID); err != nil {
		return nil, err
	}
	return uc.messages.LoadByIDs(ctx, ids)
}

func (uc *MessageUsecase) LoadUpdatesSince(ctx context.Context, actor Actor, a domain.AccessContext, since time.Time) ([]*domain.Message, error) {
	if err := uc.resolver.Authorize(ctx, a, readPermissions(a), actor.UserID); err != nil {
		return nil, err
	}
	return uc.messages.LoadUpdatesSince(ctx, a.ChannelID, since)
}

// authorizeMutation loads the target and requires either authorship or the
// moderate permission on top of write access.
func (uc *MessageUsecase) authorizeMutation(ctx context.Context, actor Actor, a domain.AccessContext, id string) (*domain.Message, error) {
	existing, err := uc.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.ChannelID != a.ChannelID {
		return nil, xerrors.ErrNotFound
	}

	perms := writePermissions(a)
	if existing.CreatorID != actor.UserID {
		perms = append(perms, domain.PermModerate)
	}
	if err := uc.resolver.Authorize(ctx, a, perms, actor.UserID); err != nil {
		return nil, err
	}
	return existing, nil
}

// notifyTail derives, stores the inbox subset and dispatches deliveries.
// Ephemeral kinds get locally synthesized ids and timestamps so the
// dispatcher sees one uniform shape.
func (uc *MessageUsecase) notifyTail(ctx context.Context, actor Actor, a domain.AccessContext, msg *domain.Message, parent *domain.Message) {
	candidates, err := uc.deriver.Derive(ctx, msg, parent, a)
	if err != nil {
		log.Printf("[pipeline] derivation for message %s failed: %v", msg.ID, err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	var durable []*domain.Notification
	for _, n := range candidates {
		if !n.Type.Ephemeral() {
			durable = append(durable, n)
		}
	}

	stored, err := uc.inbox.CreateBatch(ctx, durable)
	if err != nil {
		log.Printf("[pipeline] inbox insert for message %s failed: %v", msg.ID, err)
		stored = nil
	}

	// Reassemble in derivation order: stored rows for inbox kinds,
	// synthesized ids for ephemeral ones.
	now := time.Now()
	final := make([]*domain.Notification, 0, len(candidates))
	i := 0
	for _, n := range candidates {
		if n.Type.Ephemeral() {
			n.ID = uuid.New().String()
			n.CreatedAt = now
			n.UpdatedAt = now
			final = append(final, n)
			continue
		}
		if i < len(stored) {
			final = append(final, stored[i])
			i++
		}
	}

	uc.dispatcher.Dispatch(ctx, final, actor.DeviceID)
}

// afterWrite runs the post-persist tail on a context detached from the
// request: a client disconnect cannot unwind a committed write, and tail
// failures are logged, never surfaced to the caller.
func (uc *MessageUsecase) afterWrite(actor Actor, a domain.AccessContext, fn func(ctx context.Context, targets, except []domain.RoomTarget) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[pipeline] panic recovered in fan-out tail: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	targets, err := uc.router.TargetsFor(ctx, a)
	if err != nil {
		log.Printf("[pipeline] room targeting failed: %v", err)
		return
	}

	var except []domain.RoomTarget
	if actor.SessionID != "" {
		except = append(except, domain.SessionRoom(actor.SessionID))
	}

	if err := fn(ctx, targets, except); err != nil {
		log.Printf("[pipeline] %v", err)
	}
}
