package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

var clientRowColumns = []string{"id", "name", "phone_number", "status", "created_at", "updated_at"}

func TestClientRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClientRepository(db)
	now := time.Now()

	mock.ExpectExec("INSERT INTO clients").
		WithArgs("Acme", "+905551234567", "active").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("FROM clients WHERE id = ?").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(clientRowColumns).
			AddRow(5, "Acme", "+905551234567", "active", now, now))

	client := &domain.Client{Name: "Acme", PhoneNumber: "+905551234567", Status: domain.ClientActive}
	require.NoError(t, repo.Create(context.Background(), client))
	assert.Equal(t, int64(5), client.ID)
	assert.False(t, client.CreatedAt.IsZero())
}

func TestClientRepository_CreateDuplicatePhoneIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClientRepository(db)

	mock.ExpectExec("INSERT INTO clients").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &domain.Client{Name: "Acme", PhoneNumber: "+905551234567"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestClientRepository_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClientRepository(db)

	mock.ExpectExec("DELETE FROM clients").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 8), domain.ErrNotFound)
}

func TestClientRepository_ListEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClientRepository(db)

	mock.ExpectQuery("FROM clients ORDER BY id").
		WillReturnRows(sqlmock.NewRows(clientRowColumns))

	clients, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, clients)
	assert.Empty(t, clients)
}
