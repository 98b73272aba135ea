package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messaging-service/internal/domain"
	"messaging-service/pkg/xerrors"
)

// DeleteResult reports what a delete touched: the soft-deleted ids and the
// child messages whose parent reference was cleared in the same transaction.
type DeleteResult struct {
	ChannelID   string
	DeletedIDs  []string
	OrphanedIDs []string
}

// MessageRepository persists message rows. Mutations needing atomicity
// (insert + read-state touch, delete + orphan fix-up, reaction counters)
// run inside a single transaction so no application-level locking is needed.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	Edit(ctx context.Context, id string, body []domain.Span, attachments []domain.Attachment) (*domain.Message, error)
	Delete(ctx context.Context, id string) (*DeleteResult, error)
	DeleteAllByCreator(ctx context.Context, channelID, creatorID string) (*DeleteResult, error)
	LoadRange(ctx context.Context, channelID string, before time.Time, limit int) ([]*domain.Message, error)
	LoadByIDs(ctx context.Context, ids []string) ([]*domain.Message, error)
	LoadUpdatesSince(ctx context.Context, channelID string, since time.Time) ([]*domain.Message, error)

	// SetReaction / UnsetReaction return the updated counter map, or nil
	// when the call was a no-op (already set / never held).
	SetReaction(ctx context.Context, messageID, userID, symbol string) (map[string]int, error)
	UnsetReaction(ctx context.Context, messageID, userID, symbol string) (map[string]int, error)
}

type pgMessageRepo struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &pgMessageRepo{db: db}
}

const messageColumns = `
	id, creator_id, creator_alias, channel_id, body, attachments,
	parent_message_id, reactions, created_at, edited_at, updated_at, deleted_at
`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.CreatorID,
		&m.CreatorAlias,
		&m.ChannelID,
		&m.Body,
		&m.Attachments,
		&m.ParentMessageID,
		&m.Reactions,
		&m.CreatedAt,
		&m.EditedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create inserts the message and touches the creator's last-read marker for
// the channel in the same transaction. The caller-supplied id is the
// idempotency key: a retry hits the primary key and maps to ErrAlreadyExists.
func (p *pgMessageRepo) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO messages (
			id, creator_id, creator_alias, channel_id, body, attachments, parent_message_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + messageColumns

	created, err := scanMessage(tx.QueryRow(ctx, insert,
		m.ID,
		m.CreatorID,
		m.CreatorAlias,
		m.ChannelID,
		m.Body,
		m.Attachments,
		m.ParentMessageID,
	))
	if err != nil {
		return nil, xerrors.FromPG(err)
	}

	touch := `
		INSERT INTO channel_reads (channel_id, user_id, last_read)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, user_id)
		DO UPDATE SET last_read = EXCLUDED.last_read
	`
	if _, err := tx.Exec(ctx, touch, m.ChannelID, m.CreatorID, created.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (p *pgMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 AND deleted_at IS NULL`
	return scanMessage(p.db.QueryRow(ctx, query, id))
}

func (p *pgMessageRepo) Edit(ctx context.Context, id string, body []domain.Span, attachments []domain.Attachment) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET body = $2, attachments = $3, edited_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + messageColumns

	return scanMessage(p.db.QueryRow(ctx, query, id, body, attachments))
}

// Delete soft-deletes one message, zeroes its reaction aggregate and clears
// parent_message_id on every live child, all in one transaction. It returns
// the deleted ids and the orphaned child ids; the caller emits one delete
// event plus one update event per orphan.
func (p *pgMessageRepo) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	return p.deleteWhere(ctx, `id = $1 AND deleted_at IS NULL`, id)
}

// DeleteAllByCreator soft-deletes every live message by the creator in the
// channel under the same contract as Delete.
func (p *pgMessageRepo) DeleteAllByCreator(ctx context.Context, channelID, creatorID string) (*DeleteResult, error) {
	return p.deleteWhere(ctx, `channel_id = $1 AND creator_id = $2 AND deleted_at IS NULL`, channelID, creatorID)
}

func (p *pgMessageRepo) deleteWhere(ctx context.Context, where string, args ...any) (*DeleteResult, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	del := `
		UPDATE messages
		SET deleted_at = NOW(), updated_at = NOW(), reactions = '{}'::jsonb
		WHERE ` + where + `
		RETURNING id, channel_id
	`
	rows, err := tx.Query(ctx, del, args...)
	if err != nil {
		return nil, err
	}

	res := &DeleteResult{}
	for rows.Next() {
		var id, channelID string
		if err := rows.Scan(&id, &channelID); err != nil {
			rows.Close()
			return nil, err
		}
		res.DeletedIDs = append(res.DeletedIDs, id)
		res.ChannelID = channelID
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(res.DeletedIDs) == 0 {
		return nil, xerrors.ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = ANY($1)`, res.DeletedIDs); err != nil {
		return nil, err
	}

	orphan := `
		UPDATE messages
		SET parent_message_id = NULL, updated_at = NOW()
		WHERE parent_message_id = ANY($1) AND deleted_at IS NULL
		RETURNING id
	`
	rows, err = tx.Query(ctx, orphan, res.DeletedIDs)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		res.OrphanedIDs = append(res.OrphanedIDs, id)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *pgMessageRepo) LoadRange(ctx context.Context, channelID string, before time.Time, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND created_at < $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $3
	`
	return p.queryMessages(ctx, query, channelID, before, limit)
}

func (p *pgMessageRepo) LoadByIDs(ctx context.Context, ids []string) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	return p.queryMessages(ctx, query, ids)
}

// LoadUpdatesSince also returns soft-deleted rows so reconnecting clients
// can reconcile deletions.
func (p *pgMessageRepo) LoadUpdatesSince(ctx context.Context, channelID string, since time.Time) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND updated_at > $2
		ORDER BY updated_at ASC
	`
	return p.queryMessages(ctx, query, channelID, since)
}

func (p *pgMessageRepo) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return messages, nil
}

// SetReaction records the holder in the side table and bumps the jsonb
// counter atomically. Setting a reaction the user already holds is a no-op:
// the conditional insert decides, so concurrent reactors never double-count.
func (p *pgMessageRepo) SetReaction(ctx context.Context, messageID, userID, symbol string) (map[string]int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	hold := `
		INSERT INTO message_reactions (message_id, user_id, symbol)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, symbol) DO NOTHING
	`
	ct, err := tx.Exec(ctx, hold, messageID, userID, symbol)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, nil
	}

	bump := `
		UPDATE messages
		SET reactions = jsonb_set(
			COALESCE(reactions, '{}'::jsonb),
			ARRAY[$2],
			to_jsonb(COALESCE((reactions ->> $2)::int, 0) + 1),
			true
		), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING reactions
	`
	var reactions map[string]int
	if err := tx.QueryRow(ctx, bump, messageID, symbol).Scan(&reactions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reactions, nil
}

// UnsetReaction is the mirror of SetReaction; unsetting a reaction the user
// does not hold returns nil with no error.
func (p *pgMessageRepo) UnsetReaction(ctx context.Context, messageID, userID, symbol string) (map[string]int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	release := `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND symbol = $3
	`
	ct, err := tx.Exec(ctx, release, messageID, userID, symbol)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, nil
	}

	drop := `
		UPDATE messages
		SET reactions = CASE
			WHEN COALESCE((reactions ->> $2)::int, 0) <= 1 THEN reactions - $2
			ELSE jsonb_set(reactions, ARRAY[$2], to_jsonb((reactions ->> $2)::int - 1))
		END, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING reactions
	`
	var reactions map[string]int
	if err := tx.QueryRow(ctx, drop, messageID, symbol).Scan(&reactions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reactions, nil
}
