package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists delivery history in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed delivery history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the notifications table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id                 VARCHAR(36) PRIMARY KEY,
			student_id         VARCHAR(64) NOT NULL,
			student_name       TEXT NOT NULL,
			alert_type         VARCHAR(20) NOT NULL,
			channel            VARCHAR(10) NOT NULL CHECK (channel IN ('email', 'sms')),
			recipients         JSONB NOT NULL DEFAULT '[]',
			message            TEXT NOT NULL,
			priority           VARCHAR(10) NOT NULL,
			sent_count         INTEGER NOT NULL,
			failed_recipients  JSONB NOT NULL DEFAULT '[]',
			status             VARCHAR(10) NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_student
			ON notifications (student_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_notifications_created_at
			ON notifications (created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, d *Delivery) error {
	recipientsJSON, err := json.Marshal(d.Recipients)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}
	failedJSON, err := json.Marshal(d.FailedRecipients)
	if err != nil {
		return fmt.Errorf("failed to marshal failed recipients: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, student_id, student_name, alert_type, channel,
			recipients, message, priority, sent_count, failed_recipients, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		d.ID, d.StudentID, d.StudentName, string(d.AlertType), string(d.Channel),
		recipientsJSON, d.Message, d.Priority, d.SentCount, failedJSON, d.Status, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Delivery, error) {
	query := `
		SELECT id, student_id, student_name, alert_type, channel, recipients,
			message, priority, sent_count, failed_recipients, status, created_at
		FROM notifications
		WHERE ($1 = '' OR student_id = $1)
		  AND ($2 = '' OR alert_type = $2)
		ORDER BY created_at DESC
	`
	args := []interface{}{f.StudentID, string(f.AlertType)}
	if f.Limit > 0 {
		query += " LIMIT $3"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Delivery
	for rows.Next() {
		var d Delivery
		var recipientsJSON, failedJSON []byte
		if err := rows.Scan(&d.ID, &d.StudentID, &d.StudentName, &d.AlertType, &d.Channel,
			&recipientsJSON, &d.Message, &d.Priority, &d.SentCount, &failedJSON,
			&d.Status, &d.CreatedAt); err != nil {
			continue
		}
		_ = json.Unmarshal(recipientsJSON, &d.Recipients)
		_ = json.Unmarshal(failedJSON, &d.FailedRecipients)
		result = append(result, &d)
	}
	return result, nil
}
