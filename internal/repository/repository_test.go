package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		raw.Close()
	})

	return sqlx.NewDb(raw, "mysql"), mock
}

var messageRowColumns = []string{
	"id", "client_id", "campaign_id", "variant_id", "content", "phone_number", "status",
	"message_id", "sent_at", "delivered_at", "read_at", "created_at", "updated_at",
}
