package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
)

func DSN(cfg environments.DatabaseConfig) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)
}

func NewMySQLDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to MySQL database %s@%s:%s", cfg.DBName, cfg.Host, cfg.Port)
	return db, nil
}

// migrations run in order, one statement each. The driver is not opened with
// multiStatements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone_number VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_clients_phone (phone_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		id CHAR(36) PRIMARY KEY,
		client_id BIGINT NULL,
		name VARCHAR(255) NOT NULL,
		template TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		rate_limit JSON NOT NULL,
		ab_test JSON NULL,
		total_recipients INT NOT NULL DEFAULT 0,
		started_at DATETIME NULL,
		completed_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_campaigns_status (status),
		CONSTRAINT fk_campaigns_client FOREIGN KEY (client_id) REFERENCES clients (id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		client_id BIGINT NULL,
		campaign_id CHAR(36) NULL,
		variant_id VARCHAR(64) NULL,
		content TEXT NOT NULL,
		phone_number VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		message_id VARCHAR(100),
		sent_at DATETIME,
		delivered_at DATETIME,
		read_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_messages_status (status),
		INDEX idx_messages_created_at (created_at),
		INDEX idx_messages_sent_at (sent_at),
		INDEX idx_messages_campaign (campaign_id, status),
		INDEX idx_messages_message_id (message_id),
		CONSTRAINT fk_messages_client FOREIGN KEY (client_id) REFERENCES clients (id) ON DELETE SET NULL,
		CONSTRAINT fk_messages_campaign FOREIGN KEY (campaign_id) REFERENCES campaigns (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logger.Infof("Database migrations completed (%d statements)", len(migrations))
	return nil
}

type seedClient struct {
	name        string
	phoneNumber string
	messages    []string
}

var seedClients = []seedClient{
	{
		name:        "Acme Retail",
		phoneNumber: "+905551234567",
		messages: []string{
			"Your order has been shipped. Track it here.",
			"Special offer just for you! 20% off all products.",
			"Thank you for your purchase! Order #12345",
		},
	},
	{
		name:        "City Clinic",
		phoneNumber: "+905559876543",
		messages: []string{
			"Reminder: Your appointment is tomorrow at 10 AM",
			"Your test results are ready.",
		},
	},
	{
		name:        "Northwind Bank",
		phoneNumber: "+905551112233",
		messages: []string{
			"Your verification code is 123456",
			"Your password has been successfully reset.",
		},
	},
}

// SeedTestData inserts a few clients with pending messages into an empty
// database. It is a no-op once any client exists.
func SeedTestData(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM clients"); err != nil {
		return err
	}

	if count > 0 {
		logger.Infof("Database already has %d clients, skipping seed", count)
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seeded int
	for _, c := range seedClients {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO clients (name, phone_number, status) VALUES (?, ?, 'active')",
			c.name, c.phoneNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to seed client %s: %w", c.name, err)
		}

		clientID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get client id: %w", err)
		}

		for _, content := range c.messages {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO messages (client_id, content, phone_number, status) VALUES (?, ?, ?, 'pending')",
				clientID, content, fmt.Sprintf("+9055500000%02d", seeded+1),
			); err != nil {
				return fmt.Errorf("failed to seed test data: %w", err)
			}
			seeded++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}

	logger.Infof("Seeded %d clients and %d messages", len(seedClients), seeded)
	return nil
}

// Probe adapts a connection pool to the health check's Ping(ctx) shape.
type Probe struct {
	db *sqlx.DB
}

func NewProbe(db *sqlx.DB) *Probe {
	return &Probe{db: db}
}

func (p *Probe) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
