package notify

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"messaging-service/internal/domain"
	"messaging-service/internal/repository"
	"messaging-service/pkg/push"
	"messaging-service/pkg/roombus"
)

// Dispatcher delivers each derived notification through the best available
// channel: inbox kinds get a notification:new event on the recipient's user
// room, ephemeral kinds are already covered by the raw message event; both
// then go through push evaluation for devices not otherwise reached.
type Dispatcher struct {
	bus      roombus.Bus
	push     repository.PushRepository
	provider push.Provider
	limit    int
}

func NewDispatcher(bus roombus.Bus, pushRepo repository.PushRepository, provider push.Provider, limit int) *Dispatcher {
	if limit <= 0 {
		limit = 8
	}
	return &Dispatcher{bus: bus, push: pushRepo, provider: provider, limit: limit}
}

// Dispatch is best-effort: per-notification failures are logged, never
// returned, and push sends run in a bounded group so a mention burst cannot
// fan out into unbounded concurrent provider calls.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications []*domain.Notification, originDeviceID string) {
	g := &errgroup.Group{}
	g.SetLimit(d.limit)

	for _, n := range notifications {
		if !n.Type.Ephemeral() {
			room := []domain.RoomTarget{domain.UserRoom(n.UserID)}
			if err := d.bus.Emit(ctx, domain.EventNotificationNew, n, room, nil); err != nil {
				log.Printf("[dispatch] notification event for %s failed: %v", n.UserID, err)
			}
		}

		subs, err := d.eligibleDevices(ctx, n)
		if err != nil {
			log.Printf("[dispatch] push evaluation for %s failed: %v", n.UserID, err)
			continue
		}

		payload := pushPayload(n)
		for _, sub := range subs {
			if sub.DeviceID == originDeviceID {
				continue
			}
			sub := sub
			g.Go(func() error {
				d.send(ctx, sub, payload)
				return nil
			})
		}
	}

	_ = g.Wait()
}

// eligibleDevices applies the recipient's preferences before any device is
// considered. Community-scoped kinds need an explicit per-community
// preference row; the row being absent means no devices apply, never
// default-to-notify. DMs obey the global DM flag.
func (d *Dispatcher) eligibleDevices(ctx context.Context, n *domain.Notification) ([]*domain.PushSubscription, error) {
	switch {
	case n.Type == domain.NotifyDM:
		enabled, err := d.push.DMEnabled(ctx, n.UserID)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, nil
		}
	case n.SubjectCommunityID != "":
		pref, err := d.push.Preference(ctx, n.UserID, n.SubjectCommunityID)
		if err != nil {
			return nil, err
		}
		if !pref.AllowsPush(n.Type) {
			return nil, nil
		}
	}
	return d.push.ActiveSubscriptions(ctx, n.UserID)
}

func (d *Dispatcher) send(ctx context.Context, sub *domain.PushSubscription, payload push.Payload) {
	outcome, err := d.provider.Send(ctx, sub, payload)
	switch outcome {
	case push.Gone:
		// Confirmed-dead target: clearing it keeps later dispatches from
		// retrying a subscription the provider already buried.
		if err := d.push.ClearSubscription(ctx, sub.DeviceID); err != nil {
			log.Printf("[dispatch] clearing gone subscription %s failed: %v", sub.DeviceID, err)
			return
		}
		log.Printf("[dispatch] cleared gone subscription %s", sub.DeviceID)
	case push.Failed:
		log.Printf("[dispatch] push to device %s failed: %v", sub.DeviceID, err)
	}
}

func pushPayload(n *domain.Notification) push.Payload {
	p := push.Payload{
		Type:   n.Type,
		Body:   n.Text,
		ItemID: n.SubjectItemID,
		Extra:  n.ExtraData,
	}
	if ch, ok := n.ExtraData["channelId"].(string); ok {
		p.ChannelID = ch
	}
	return p
}
