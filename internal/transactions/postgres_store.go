package transactions

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists committed transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed transaction audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transaction_records table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transaction_records (
			id          VARCHAR(64) PRIMARY KEY,
			user_id     VARCHAR(64) NOT NULL,
			amount      NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			direction   VARCHAR(6) NOT NULL CHECK (direction IN ('credit', 'debit')),
			description TEXT NOT NULL DEFAULT '',
			merchant    TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transaction_records_user_id
			ON transaction_records (user_id, created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, tx *Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transaction_records (id, user_id, amount, direction, description, merchant, location, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		tx.ID,
		tx.UserID,
		tx.Amount,
		string(tx.Direction),
		tx.Description,
		tx.Merchant,
		tx.Location,
		tx.Category,
		tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, direction, description, merchant, location, category, created_at
		FROM transaction_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Transaction
	for rows.Next() {
		var tx Transaction
		var direction string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &direction, &tx.Description,
			&tx.Merchant, &tx.Location, &tx.Category, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Direction = Direction(direction)
		result = append(result, &tx)
	}
	return result, rows.Err()
}
