package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists fraud assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed fraud assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the fraud_assessments table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fraud_assessments (
			id              VARCHAR(64) PRIMARY KEY,
			user_id         VARCHAR(64) NOT NULL,
			transaction_id  VARCHAR(64) NOT NULL,
			alerts          JSONB NOT NULL DEFAULT '[]',
			aggregate_score NUMERIC(5,2) NOT NULL CHECK (aggregate_score >= 0 AND aggregate_score <= 100),
			evaluated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_user_id
			ON fraud_assessments (user_id, evaluated_at DESC);
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, assessment *Assessment) error {
	alertsJSON, err := json.Marshal(assessment.Alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_assessments (id, user_id, transaction_id, alerts, aggregate_score, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		assessment.ID,
		assessment.UserID,
		assessment.TransactionID,
		alertsJSON,
		assessment.AggregateScore,
		assessment.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fraud assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, transaction_id, alerts, aggregate_score, evaluated_at
		FROM fraud_assessments
		WHERE user_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var alertsJSON []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.TransactionID, &alertsJSON, &a.AggregateScore, &a.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fraud assessment: %w", err)
		}
		if err := json.Unmarshal(alertsJSON, &a.Alerts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}
