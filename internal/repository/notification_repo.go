package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

// NotificationRepository persists the durable per-user inbox. Only inbox
// kinds are ever written; ephemeral kinds (DM, channel traffic) never reach
// this layer.
type NotificationRepository interface {
	// CreateBatch inserts all notifications in one round trip and returns
	// them with generated ids and timestamps, input order preserved.
	CreateBatch(ctx context.Context, notifications []*domain.Notification) ([]*domain.Notification, error)

	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error

	// MarkAllRead returns the number of rows flipped.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	Delete(ctx context.Context, id, userID string) error
}

type pgNotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepo{db: db}
}

const notificationColumns = `
	id, user_id, type, subject_item_id, subject_community_id,
	subject_user_id, subject_article_id, text, extra_data, read,
	created_at, updated_at, deleted_at
`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var itemID, communityID, userID, articleID *string
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&itemID,
		&communityID,
		&userID,
		&articleID,
		&n.Text,
		&n.ExtraData,
		&n.Read,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	if itemID != nil {
		n.SubjectItemID = *itemID
	}
	if communityID != nil {
		n.SubjectCommunityID = *communityID
	}
	if userID != nil {
		n.SubjectUserID = *userID
	}
	if articleID != nil {
		n.SubjectArticleID = *articleID
	}
	return &n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p *pgNotificationRepo) CreateBatch(ctx context.Context, notifications []*domain.Notification) ([]*domain.Notification, error) {
	if len(notifications) == 0 {
		return nil, nil
	}

	insert := `
		INSERT INTO notifications (
			user_id, type, subject_item_id, subject_community_id,
			subject_user_id, subject_article_id, text, extra_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + notificationColumns

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(insert,
			n.UserID,
			n.Type,
			nullable(n.SubjectItemID),
			nullable(n.SubjectCommunityID),
			nullable(n.SubjectUserID),
			nullable(n.SubjectArticleID),
			n.Text,
			n.ExtraData,
		)
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	created := make([]*domain.Notification, 0, len(notifications))
	for range notifications {
		n, err := scanNotification(results.QueryRow())
		if err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}

func (p *pgNotificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := p.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return notifications, nil
}

func (p *pgNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND read = false AND deleted_at IS NULL
	`
	var count int
	if err := p.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *pgNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	query := `
		UPDATE notifications
		SET read = true, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND read = false AND deleted_at IS NULL
	`
	ct, err := p.db.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (p *pgNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE notifications
		SET read = true, updated_at = NOW()
		WHERE user_id = $1 AND read = false AND deleted_at IS NULL
	`
	ct, err := p.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (p *pgNotificationRepo) Delete(ctx context.Context, id, userID string) error {
	query := `
		UPDATE notifications
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
	ct, err := p.db.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
