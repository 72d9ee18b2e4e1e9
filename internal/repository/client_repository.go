package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

const mysqlDuplicateEntry = 1062

type ClientRepository struct {
	db *sqlx.DB
}

func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (name, phone_number, status, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query, client.Name, client.PhoneNumber, client.Status)
	if err != nil {
		return clientWriteError(err, client.PhoneNumber)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	*client = *stored
	return nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	query := "SELECT id, name, phone_number, status, created_at, updated_at FROM clients WHERE id = ?"

	var client domain.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return &client, nil
}

func (r *ClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	query := "SELECT id, name, phone_number, status, created_at, updated_at FROM clients ORDER BY id ASC"

	clients := []domain.Client{}
	if err := r.db.SelectContext(ctx, &clients, query); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	return clients, nil
}

func (r *ClientRepository) Update(ctx context.Context, client *domain.Client) error {
	query := `
		UPDATE clients
		SET name = ?, phone_number = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, client.Name, client.PhoneNumber, client.ID)
	if err != nil {
		return clientWriteError(err, client.PhoneNumber)
	}

	// MySQL reports zero affected rows when nothing changed, so existence is
	// checked by reading the row back.
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	stored, err := r.GetByID(ctx, client.ID)
	if err != nil {
		return err
	}

	*client = *stored
	return nil
}

func (r *ClientRepository) UpdateStatus(ctx context.Context, id int64, status domain.ClientStatus) error {
	query := "UPDATE clients SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"

	if _, err := r.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to update client status: %w", err)
	}

	_, err := r.GetByID(ctx, id)
	return err
}

func (r *ClientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	return expectRow(result, fmt.Errorf("client %d: %w", id, domain.ErrNotFound))
}

func clientWriteError(err error, phone string) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("client with phone %s already exists: %w", phone, domain.ErrConflict)
	}
	return fmt.Errorf("failed to write client: %w", err)
}
