package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

// recipientBatchSize caps the rows of one multi-row message INSERT.
const recipientBatchSize = 500

const campaignColumns = `id, client_id, name, template, status, rate_limit, ab_test,
	total_recipients, started_at, completed_at, created_at, updated_at`

type campaignRow struct {
	ID              string                `db:"id"`
	ClientID        *int64                `db:"client_id"`
	Name            string                `db:"name"`
	Template        string                `db:"template"`
	Status          domain.CampaignStatus `db:"status"`
	RateLimit       []byte                `db:"rate_limit"`
	ABTest          []byte                `db:"ab_test"`
	TotalRecipients int                   `db:"total_recipients"`
	StartedAt       *time.Time            `db:"started_at"`
	CompletedAt     *time.Time            `db:"completed_at"`
	CreatedAt       time.Time             `db:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at"`
}

func (row campaignRow) toDomain() (domain.Campaign, error) {
	c := domain.Campaign{
		ID:              row.ID,
		ClientID:        row.ClientID,
		Name:            row.Name,
		Template:        row.Template,
		Status:          row.Status,
		TotalRecipients: row.TotalRecipients,
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}

	if err := json.Unmarshal(row.RateLimit, &c.RateLimit); err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign %s: bad rate_limit: %w", row.ID, err)
	}
	if len(row.ABTest) > 0 {
		if err := json.Unmarshal(row.ABTest, &c.ABTest); err != nil {
			return domain.Campaign{}, fmt.Errorf("campaign %s: bad ab_test: %w", row.ID, err)
		}
	}

	return c, nil
}

type campaignMessageRow struct {
	ClientID    *int64  `db:"client_id"`
	CampaignID  string  `db:"campaign_id"`
	VariantID   *string `db:"variant_id"`
	Content     string  `db:"content"`
	PhoneNumber string  `db:"phone_number"`
}

type CampaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create stores the campaign and one pending message per recipient in a
// single transaction.
func (r *CampaignRepository) Create(
	ctx context.Context,
	campaign *domain.Campaign,
	recipients []domain.CampaignRecipient,
) error {
	rateLimit, err := json.Marshal(campaign.RateLimit)
	if err != nil {
		return fmt.Errorf("failed to encode rate limit: %w", err)
	}

	abTest, err := json.Marshal(campaign.ABTest)
	if err != nil {
		return fmt.Errorf("failed to encode A/B test: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, client_id, name, template, status, rate_limit, ab_test,
		                       total_recipients, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		campaign.ID, campaign.ClientID, campaign.Name, campaign.Template, campaign.Status,
		rateLimit, abTest, campaign.TotalRecipients, campaign.StartedAt,
		campaign.CreatedAt, campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	rows := make([]campaignMessageRow, 0, len(recipients))
	for _, rc := range recipients {
		rows = append(rows, campaignMessageRow{
			ClientID:    campaign.ClientID,
			CampaignID:  campaign.ID,
			VariantID:   rc.VariantID,
			Content:     rc.Content,
			PhoneNumber: rc.PhoneNumber,
		})
	}

	for start := 0; start < len(rows); start += recipientBatchSize {
		end := min(start+recipientBatchSize, len(rows))
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO messages (client_id, campaign_id, variant_id, content, phone_number, status)
			VALUES (:client_id, :campaign_id, :variant_id, :content, :phone_number, 'pending')
		`, rows[start:end])
		if err != nil {
			return fmt.Errorf("failed to insert campaign messages: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit campaign: %w", err)
	}

	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var row campaignRow
	if err := r.db.GetContext(ctx, &row, "SELECT "+campaignColumns+" FROM campaigns WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	campaign, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	return &campaign, nil
}

func (r *CampaignRepository) List(ctx context.Context, status *domain.CampaignStatus) ([]domain.Campaign, error) {
	query := "SELECT " + campaignColumns + " FROM campaigns"
	var args []any
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	var rows []campaignRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	campaigns := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, nil
}

// UpdateStatus moves the campaign from one status to another. Starting sets
// started_at once; completing or cancelling sets completed_at.
func (r *CampaignRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to domain.CampaignStatus,
	at time.Time,
) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{to, at}

	switch to {
	case domain.CampaignRunning:
		sets = append(sets, "started_at = COALESCE(started_at, ?)")
		args = append(args, at)
	case domain.CampaignCompleted, domain.CampaignCancelled:
		sets = append(sets, "completed_at = ?")
		args = append(args, at)
	}

	query := "UPDATE campaigns SET " + strings.Join(sets, ", ") + " WHERE id = ? AND status = ?"
	args = append(args, id, from)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	return expectRow(result, fmt.Errorf("campaign %s is no longer %s: %w", id, from, domain.ErrConflict))
}

// StatusCounts groups the campaign's messages by status.
func (r *CampaignRepository) StatusCounts(ctx context.Context, id string) (map[domain.MessageStatus]int, error) {
	var rows []struct {
		Status domain.MessageStatus `db:"status"`
		Count  int                  `db:"count"`
	}

	query := "SELECT status, COUNT(*) AS count FROM messages WHERE campaign_id = ? GROUP BY status"
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to count campaign messages: %w", err)
	}

	counts := make(map[domain.MessageStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (r *CampaignRepository) RecipientAnalytics(ctx context.Context, id string) ([]domain.RecipientAnalytics, error) {
	query := `
		SELECT phone_number, variant_id, status, sent_at, delivered_at, read_at
		FROM messages
		WHERE campaign_id = ?
		ORDER BY id ASC
	`

	records := []domain.RecipientAnalytics{}
	if err := r.db.SelectContext(ctx, &records, query, id); err != nil {
		return nil, fmt.Errorf("failed to get recipient analytics: %w", err)
	}

	return records, nil
}

// FailPending marks the campaign's still-pending messages as failed.
func (r *CampaignRepository) FailPending(ctx context.Context, id string) (int64, error) {
	query := `
		UPDATE messages
		SET status = 'failed', updated_at = CURRENT_TIMESTAMP
		WHERE campaign_id = ? AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to fail pending campaign messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}
