package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

// PushRepository stores per-device push subscriptions, per-community
// notification preferences, the global DM flag and broad channel-watch
// opt-ins.
type PushRepository interface {
	SaveSubscription(ctx context.Context, sub *domain.PushSubscription) error
	ActiveSubscriptions(ctx context.Context, userID string) ([]*domain.PushSubscription, error)

	// ClearSubscription drops a dead push target (provider said gone).
	// Clearing an already-cleared device is not an error.
	ClearSubscription(ctx context.Context, deviceID string) error

	UpsertPreference(ctx context.Context, pref *domain.NotifyPreference) error

	// Preference returns nil (no error) when the user has no row for the
	// community: unknown preferences mean no pushes, never default-on.
	Preference(ctx context.Context, userID, communityID string) (*domain.NotifyPreference, error)

	DMEnabled(ctx context.Context, userID string) (bool, error)
	SetDMEnabled(ctx context.Context, userID string, enabled bool) error

	// ChannelWatchers returns users opted into broad per-channel
	// notification: mode "always", or "while_pinned" with the channel
	// currently pinned for them.
	ChannelWatchers(ctx context.Context, channelID string) ([]string, error)
	SetChannelWatch(ctx context.Context, userID, communityID, channelID string, mode domain.ChannelWatchMode, pinned bool) error
}

type pgPushRepo struct {
	db *pgxpool.Pool
}

func NewPushRepository(db *pgxpool.Pool) PushRepository {
	return &pgPushRepo{db: db}
}

func (p *pgPushRepo) SaveSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (device_id, user_id, endpoint, keys)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id)
		DO UPDATE SET user_id = EXCLUDED.user_id, endpoint = EXCLUDED.endpoint, keys = EXCLUDED.keys
	`
	_, err := p.db.Exec(ctx, query, sub.DeviceID, sub.UserID, sub.Endpoint, sub.Keys)
	return err
}

func (p *pgPushRepo) ActiveSubscriptions(ctx context.Context, userID string) ([]*domain.PushSubscription, error) {
	query := `
		SELECT device_id, user_id, endpoint, keys, created_at
		FROM push_subscriptions
		WHERE user_id = $1
	`
	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription
		if err := rows.Scan(&s.DeviceID, &s.UserID, &s.Endpoint, &s.Keys, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}

func (p *pgPushRepo) ClearSubscription(ctx context.Context, deviceID string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE device_id = $1`, deviceID)
	return err
}

func (p *pgPushRepo) UpsertPreference(ctx context.Context, pref *domain.NotifyPreference) error {
	query := `
		INSERT INTO notify_preferences (user_id, community_id, mentions, replies, posts, events, calls)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, community_id)
		DO UPDATE SET
			mentions = EXCLUDED.mentions,
			replies  = EXCLUDED.replies,
			posts    = EXCLUDED.posts,
			events   = EXCLUDED.events,
			calls    = EXCLUDED.calls
	`
	_, err := p.db.Exec(ctx, query,
		pref.UserID, pref.CommunityID,
		pref.Mentions, pref.Replies, pref.Posts, pref.Events, pref.Calls,
	)
	return err
}

func (p *pgPushRepo) Preference(ctx context.Context, userID, communityID string) (*domain.NotifyPreference, error) {
	query := `
		SELECT user_id, community_id, mentions, replies, posts, events, calls
		FROM notify_preferences
		WHERE user_id = $1 AND community_id = $2
	`
	var pref domain.NotifyPreference
	err := p.db.QueryRow(ctx, query, userID, communityID).Scan(
		&pref.UserID, &pref.CommunityID,
		&pref.Mentions, &pref.Replies, &pref.Posts, &pref.Events, &pref.Calls,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &pref, nil
}

func (p *pgPushRepo) DMEnabled(ctx context.Context, userID string) (bool, error) {
	query := `SELECT dm_enabled FROM user_notify_settings WHERE user_id = $1`
	var enabled bool
	err := p.db.QueryRow(ctx, query, userID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No settings row yet: DMs push by default.
			return true, nil
		}
		return false, err
	}
	return enabled, nil
}

func (p *pgPushRepo) SetDMEnabled(ctx context.Context, userID string, enabled bool) error {
	query := `
		INSERT INTO user_notify_settings (user_id, dm_enabled)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET dm_enabled = EXCLUDED.dm_enabled
	`
	_, err := p.db.Exec(ctx, query, userID, enabled)
	return err
}

func (p *pgPushRepo) ChannelWatchers(ctx context.Context, channelID string) ([]string, error) {
	query := `
		SELECT user_id
		FROM channel_watchers
		WHERE channel_id = $1
		  AND (mode = 'always' OR (mode = 'while_pinned' AND pinned = true))
	`
	rows, err := p.db.Query(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

func (p *pgPushRepo) SetChannelWatch(ctx context.Context, userID, communityID, channelID string, mode domain.ChannelWatchMode, pinned bool) error {
	if mode != domain.WatchAlways && mode != domain.WatchWhilePinned {
		return xerrors.ErrInvalidRequest
	}
	query := `
		INSERT INTO channel_watchers (user_id, community_id, channel_id, mode, pinned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, channel_id)
		DO UPDATE SET mode = EXCLUDED.mode, pinned = EXCLUDED.pinned
	`
	_, err := p.db.Exec(ctx, query, userID, communityID, channelID, mode, pinned)
	return err
}
