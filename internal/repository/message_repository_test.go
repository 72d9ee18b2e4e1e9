package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

func TestMessageRepository_GetUnsentFiltersByCampaignAndClient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(messageRowColumns).
		AddRow(1, nil, nil, nil, "hello", "+905551234567", "pending", nil, nil, nil, nil, now, now).
		AddRow(2, 7, "c-1", "v-a", "hi", "+905559876543", "pending", nil, nil, nil, nil, now, now)

	mock.ExpectQuery(`(?s)LEFT JOIN campaigns c.*LEFT JOIN clients cl.*c.status = 'running'.*cl.status = 'active'.*LIMIT \?`).
		WithArgs(10).
		WillReturnRows(rows)

	messages, err := repo.GetUnsent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Nil(t, messages[0].CampaignID)
	require.NotNil(t, messages[1].CampaignID)
	assert.Equal(t, "c-1", *messages[1].CampaignID)
	assert.Equal(t, int64(7), *messages[1].ClientID)
}

func TestMessageRepository_UpdateStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	t.Run("read backfills delivered_at", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMessageRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE messages SET status = ?, updated_at = CURRENT_TIMESTAMP, delivered_at = COALESCE(delivered_at, ?), read_at = ? WHERE id = ? AND status = ?",
		)).
			WithArgs(domain.StatusRead, at, at, int64(4), domain.StatusSent).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateStatus(context.Background(), 4, domain.StatusSent, domain.StatusRead, at))
	})

	t.Run("lost race is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMessageRepository(db)

		mock.ExpectExec("UPDATE messages SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), 4, domain.StatusSent, domain.StatusDelivered, at)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestMessageRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	mock.ExpectQuery("FROM messages WHERE id = ?").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(messageRowColumns))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMessageRepository_GetAllAppliesFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	status := domain.StatusDelivered
	campaignID := "c-1"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages WHERE status = ? AND campaign_id = ?")).
		WithArgs(status, campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ? AND campaign_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?")).
		WithArgs(status, campaignID, 20, 20).
		WillReturnRows(sqlmock.NewRows(messageRowColumns))

	_, total, err := repo.GetAll(context.Background(), domain.MessageFilter{
		Status:     &status,
		CampaignID: &campaignID,
	}, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestMessageRepository_GetStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	mock.ExpectQuery("SUM\\(CASE WHEN status").
		WillReturnRows(sqlmock.NewRows([]string{"pending", "sent", "delivered", "read_count", "failed"}).
			AddRow(3, 2, 5, 1, 4))

	stats, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStats{Pending: 3, Sent: 2, Delivered: 5, Read: 1, Failed: 4}, stats)
	assert.Equal(t, int64(15), stats.Total())
}

func TestMessageRepository_ReplayFailedByID(t *testing.T) {
	tests := []struct {
		name    string
		lookup  *sqlmock.Rows
		wantErr error
	}{
		{
			name:    "missing message",
			lookup:  sqlmock.NewRows([]string{"status", "campaign_status"}),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "not failed",
			lookup:  sqlmock.NewRows([]string{"status", "campaign_status"}).AddRow("sent", nil),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "finished campaign",
			lookup:  sqlmock.NewRows([]string{"status", "campaign_status"}).AddRow("failed", "completed"),
			wantErr: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewMessageRepository(db)

			mock.ExpectExec(`(?s)SET status = 'pending'.*status IN \('draft', 'running', 'paused'\)`).
				WithArgs(int64(5)).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`(?s)SELECT m.status, c.status AS campaign_status.*WHERE m.id = \?`).
				WithArgs(int64(5)).
				WillReturnRows(tt.lookup)

			err := repo.ReplayFailedByID(context.Background(), 5)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMessageRepository_ReplayFailedByIDResets(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	mock.ExpectExec("SET status = 'pending'").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReplayFailedByID(context.Background(), 5))
}

func TestMessageRepository_CreateReadsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	clientID := int64(3)
	now := time.Now()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(clientID, "hello", "+905551234567").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery("FROM messages WHERE id = ?").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(messageRowColumns).
			AddRow(11, clientID, nil, nil, "hello", "+905551234567", "pending", nil, nil, nil, nil, now, now))

	msg, err := repo.Create(context.Background(), domain.NewMessage{
		ClientID:    &clientID,
		Content:     "hello",
		PhoneNumber: "+905551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), msg.ID)
	assert.Equal(t, domain.StatusPending, msg.Status)
}
