package usecase

import (
	"context"
	"log"

	"messaging-service/internal/domain"
	"messaging-service/internal/repository"
	"messaging-service/pkg/roombus"
	"messaging-service/pkg/xerrors"
)

// NotificationUsecase serves the durable inbox and the push subscription /
// preference surface. Read-state changes echo to the user's other devices
// as notification events.
type NotificationUsecase struct {
	inbox repository.NotificationRepository
	push  repository.PushRepository
	bus   roombus.Bus
}

func NewNotificationUsecase(inbox repository.NotificationRepository, push repository.PushRepository, bus roombus.Bus) *NotificationUsecase {
	return &NotificationUsecase{inbox: inbox, push: push, bus: bus}
}

func (uc *NotificationUsecase) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error) {
	return uc.inbox.ListByUser(ctx, userID, limit, offset)
}

func (uc *NotificationUsecase) CountUnread(ctx context.Context, userID string) (int, error) {
	return uc.inbox.CountUnread(ctx, userID)
}

func (uc *NotificationUsecase) MarkRead(ctx context.Context, id, userID string) error {
	if id == "" {
		return xerrors.ErrInvalidRequest
	}
	if err := uc.inbox.MarkRead(ctx, id, userID); err != nil {
		return err
	}

	payload := map[string]any{"id": id, "read": true}
	room := []domain.RoomTarget{domain.UserRoom(userID)}
	if err := uc.bus.Emit(ctx, domain.EventNotificationUpd, payload, room, nil); err != nil {
		log.Printf("[inbox] emit notification:update failed: %v", err)
	}
	return nil
}

func (uc *NotificationUsecase) MarkAllRead(ctx context.Context, userID string) (int, error) {
	flipped, err := uc.inbox.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		room := []domain.RoomTarget{domain.UserRoom(userID)}
		if err := uc.bus.Emit(ctx, domain.EventNotifyAllRead, map[string]any{}, room, nil); err != nil {
			log.Printf("[inbox] emit notification:allread failed: %v", err)
		}
	}
	return flipped, nil
}

func (uc *NotificationUsecase) Delete(ctx context.Context, id, userID string) error {
	if id == "" {
		return xerrors.ErrInvalidRequest
	}
	return uc.inbox.Delete(ctx, id, userID)
}

// --- push subscriptions and preferences ---

func (uc *NotificationUsecase) RegisterSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	if sub.DeviceID == "" || sub.UserID == "" || sub.Endpoint == "" {
		return xerrors.ErrInvalidRequest
	}
	return uc.push.SaveSubscription(ctx, sub)
}

func (uc *NotificationUsecase) RemoveSubscription(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return xerrors.ErrInvalidRequest
	}
	return uc.push.ClearSubscription(ctx, deviceID)
}

func (uc *NotificationUsecase) UpsertPreference(ctx context.Context, pref *domain.NotifyPreference) error {
	if pref.UserID == "" || pref.CommunityID == "" {
		return xerrors.ErrInvalidRequest
	}
	return uc.push.UpsertPreference(ctx, pref)
}

func (uc *NotificationUsecase) SetDMEnabled(ctx context.Context, userID string, enabled bool) error {
	return uc.push.SetDMEnabled(ctx, userID, enabled)
}

func (uc *NotificationUsecase) SetChannelWatch(ctx context.Context, userID, communityID, channelID string, mode domain.ChannelWatchMode, pinned bool) error {
	if channelID == "" {
		return xerrors.ErrInvalidRequest
	}
	return uc.push.SetChannelWatch(ctx, userID, communityID, channelID, mode, pinned)
}
