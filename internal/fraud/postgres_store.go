package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the fraud_assessments table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fraud_assessments (
			id               VARCHAR(40) PRIMARY KEY,
			transaction_uuid VARCHAR(40) NOT NULL,
			account_num      VARCHAR(20) NOT NULL,
			amount           NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			score            NUMERIC(4,3) NOT NULL CHECK (score >= 0 AND score <= 1),
			decision         VARCHAR(10) NOT NULL CHECK (decision IN ('allow', 'block')),
			signals          JSONB NOT NULL DEFAULT '[]',
			evaluated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_account
			ON fraud_assessments (account_num, evaluated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_blocks
			ON fraud_assessments (evaluated_at DESC) WHERE decision = 'block';
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	signalsJSON, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_assessments (id, transaction_uuid, account_num, amount, score, decision, signals, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		a.ID,
		a.TransactionUUID,
		a.AccountNum,
		a.Amount,
		a.Score,
		string(a.Decision),
		signalsJSON,
		a.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountNum string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_uuid, account_num, amount, score, decision, signals, evaluated_at
		FROM fraud_assessments
		WHERE account_num = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, accountNum, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var signalsJSON []byte
		var evaluatedAt time.Time

		if err := rows.Scan(&a.ID, &a.TransactionUUID, &a.AccountNum, &a.Amount, &a.Score, &a.Decision, &signalsJSON, &evaluatedAt); err != nil {
			continue
		}
		a.EvaluatedAt = evaluatedAt
		_ = json.Unmarshal(signalsJSON, &a.Signals)
		result = append(result, &a)
	}
	return result, rows.Err()
}
