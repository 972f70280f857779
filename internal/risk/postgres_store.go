package risk

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists analysis run summaries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed run summary store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the risk_runs table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_runs (
			id                 VARCHAR(36) PRIMARY KEY,
			students_analyzed  INTEGER NOT NULL,
			high_risk          INTEGER NOT NULL,
			medium_risk        INTEGER NOT NULL,
			low_risk           INTEGER NOT NULL,
			average_score      NUMERIC(4,1) NOT NULL CHECK (average_score >= 0 AND average_score <= 100),
			alert_count        INTEGER NOT NULL,
			ran_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_runs_ran_at
			ON risk_runs (ran_at DESC);
	`)
	return err
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_runs (id, students_analyzed, high_risk, medium_risk, low_risk, average_score, alert_count, ran_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.ID,
		run.StudentsAnalyzed,
		run.HighRisk,
		run.MediumRisk,
		run.LowRisk,
		run.AverageScore,
		run.AlertCount,
		run.RanAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record risk run: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, students_analyzed, high_risk, medium_risk, low_risk, average_score, alert_count, ran_at
		FROM risk_runs
		ORDER BY ran_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StudentsAnalyzed, &r.HighRisk, &r.MediumRisk,
			&r.LowRisk, &r.AverageScore, &r.AlertCount, &r.RanAt); err != nil {
			continue
		}
		result = append(result, &r)
	}
	return result, nil
}
