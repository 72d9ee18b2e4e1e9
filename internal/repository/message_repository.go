package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

const messageColumns = `id, client_id, campaign_id, variant_id, content, phone_number, status,
	message_id, sent_at, delivered_at, read_at, created_at, updated_at`

// MessageRepository handles database operations for messages.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// GetUnsent returns pending messages that may go out now: standalone ones and
// those of running campaigns, skipping any whose client is not active.
func (r *MessageRepository) GetUnsent(ctx context.Context, limit int) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.client_id, m.campaign_id, m.variant_id, m.content, m.phone_number, m.status,
		       m.message_id, m.sent_at, m.delivered_at, m.read_at, m.created_at, m.updated_at
		FROM messages m
		LEFT JOIN campaigns c ON c.id = m.campaign_id
		LEFT JOIN clients cl ON cl.id = m.client_id
		WHERE m.status = 'pending'
		  AND (m.campaign_id IS NULL OR c.status = 'running')
		  AND (m.client_id IS NULL OR cl.status = 'active')
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT ?
	`

	var messages []domain.Message
	if err := r.db.SelectContext(ctx, &messages, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get unsent messages: %w", err)
	}

	return messages, nil
}

func (r *MessageRepository) MarkAsSent(ctx context.Context, id int64, messageID string, sentAt time.Time) error {
	query := `
		UPDATE messages
		SET status = 'sent', message_id = ?, sent_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, messageID, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark message as sent: %w", err)
	}

	return expectRow(result, fmt.Errorf("message %d is not pending: %w", id, domain.ErrConflict))
}

func (r *MessageRepository) MarkAsFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET status = 'failed', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark message as failed: %w", err)
	}

	return nil
}

// UpdateStatus applies a provider status change. The row only changes while
// it still has status from, so concurrent receipts cannot move it backwards.
func (r *MessageRepository) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to domain.MessageStatus,
	at time.Time,
) error {
	sets := []string{"status = ?", "updated_at = CURRENT_TIMESTAMP"}
	args := []any{to}

	switch to {
	case domain.StatusSent:
		sets = append(sets, "sent_at = COALESCE(sent_at, ?)")
		args = append(args, at)
	case domain.StatusDelivered:
		sets = append(sets, "delivered_at = ?")
		args = append(args, at)
	case domain.StatusRead:
		sets = append(sets, "delivered_at = COALESCE(delivered_at, ?)", "read_at = ?")
		args = append(args, at, at)
	}

	query := "UPDATE messages SET " + strings.Join(sets, ", ") + " WHERE id = ? AND status = ?"
	args = append(args, id, from)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	return expectRow(result, fmt.Errorf("message %d changed status concurrently: %w", id, domain.ErrConflict))
}

func (r *MessageRepository) GetSent(ctx context.Context, page, pageSize int) ([]domain.Message, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	countQuery := "SELECT COUNT(*) FROM messages WHERE status IN ('sent', 'delivered', 'read')"
	if err := r.db.GetContext(ctx, &totalCount, countQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to count sent messages: %w", err)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status IN ('sent', 'delivered', 'read')
		ORDER BY sent_at DESC
		LIMIT ? OFFSET ?
	`

	var messages []domain.Message
	if err := r.db.SelectContext(ctx, &messages, query, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to get sent messages: %w", err)
	}

	return messages, totalCount, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE id = ?"

	var message domain.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}

// GetByProviderID looks a message up by the id the provider assigned on send.
func (r *MessageRepository) GetByProviderID(ctx context.Context, providerID string) (*domain.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE message_id = ? LIMIT 1"

	var message domain.Message
	if err := r.db.GetContext(ctx, &message, query, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %q: %w", providerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}

func (r *MessageRepository) Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	query := `
		INSERT INTO messages (client_id, content, phone_number, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query, msg.ClientID, msg.Content, msg.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *MessageRepository) GetAll(
	ctx context.Context,
	filter domain.MessageFilter,
	page, pageSize int,
) ([]domain.Message, int64, error) {
	offset := (page - 1) * pageSize

	var conds []string
	var args []any
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.ClientID != nil {
		conds = append(conds, "client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if filter.CampaignID != nil {
		conds = append(conds, "campaign_id = ?")
		args = append(args, *filter.CampaignID)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM messages"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := "SELECT " + messageColumns + " FROM messages" + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"

	var messages []domain.Message
	if err := r.db.SelectContext(ctx, &messages, query, append(args, pageSize, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to get messages: %w", err)
	}

	return messages, totalCount, nil
}

func (r *MessageRepository) GetStats(ctx context.Context) (domain.MessageStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)   AS pending,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0)      AS sent,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'read' THEN 1 ELSE 0 END), 0)      AS read_count,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)    AS failed
		FROM messages
	`

	var stats domain.MessageStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return domain.MessageStats{}, fmt.Errorf("failed to get stats: %w", err)
	}

	return stats, nil
}

func (r *MessageRepository) ReplayFailedByID(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET status = 'pending',
		    message_id = NULL,
		    sent_at = NULL,
		    delivered_at = NULL,
		    read_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'failed'
		  AND (campaign_id IS NULL
		       OR campaign_id IN (SELECT id FROM campaigns WHERE status IN ('draft', 'running', 'paused')))
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to replay failed message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	return r.replayMiss(ctx, id)
}

// replayMiss explains why ReplayFailedByID touched nothing.
func (r *MessageRepository) replayMiss(ctx context.Context, id int64) error {
	var row struct {
		Status         domain.MessageStatus `db:"status"`
		CampaignStatus sql.NullString       `db:"campaign_status"`
	}

	query := `
		SELECT m.status, c.status AS campaign_status
		FROM messages m
		LEFT JOIN campaigns c ON c.id = m.campaign_id
		WHERE m.id = ?
	`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && row.Status != domain.StatusFailed) {
		return fmt.Errorf("no failed message with id %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	return fmt.Errorf("message %d belongs to a %s campaign: %w", id, row.CampaignStatus.String, domain.ErrConflict)
}

// ReplayAllFailed resets failed messages to pending. Messages of finished
// campaigns stay failed.
func (r *MessageRepository) ReplayAllFailed(ctx context.Context) (int64, error) {
	query := `
		UPDATE messages
		SET status = 'pending',
		    message_id = NULL,
		    sent_at = NULL,
		    delivered_at = NULL,
		    read_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE status = 'failed'
		  AND (campaign_id IS NULL
		       OR campaign_id IN (SELECT id FROM campaigns WHERE status IN ('draft', 'running', 'paused')))
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to replay failed messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// expectRow returns missing when result touched no rows.
func expectRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return missing
	}

	return nil
}
