package records

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists canonical records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed record store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the record tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id            BIGSERIAL PRIMARY KEY,
			student_name  TEXT NOT NULL,
			class         TEXT NOT NULL DEFAULT '',
			date          TEXT NOT NULL DEFAULT '',
			is_present    BOOLEAN NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS marks_records (
			id            BIGSERIAL PRIMARY KEY,
			student_name  TEXT NOT NULL,
			subject       TEXT NOT NULL DEFAULT '',
			test          TEXT NOT NULL DEFAULT '',
			marks         NUMERIC(7,2) NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS fee_records (
			id            BIGSERIAL PRIMARY KEY,
			student_name  TEXT NOT NULL,
			month         TEXT NOT NULL DEFAULT '',
			amount        NUMERIC(12,2) NOT NULL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'Partial',
			is_paid       BOOLEAN NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance_records (student_name);
		CREATE INDEX IF NOT EXISTS idx_marks_student ON marks_records (student_name);
		CREATE INDEX IF NOT EXISTS idx_fees_student ON fee_records (student_name);
	`)
	return err
}

// AppendAttendance inserts a batch inside one transaction so a failed upload
// never leaves a partial batch behind.
func (s *PostgresStore) AppendAttendance(ctx context.Context, recs []AttendanceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO attendance_records (student_name, class, date, is_present)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.StudentName, r.Class, r.Date, r.IsPresent); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) AppendMarks(ctx context.Context, recs []MarksRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO marks_records (student_name, subject, test, marks)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.StudentName, r.Subject, r.Test, r.Marks); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) AppendFees(ctx context.Context, recs []FeeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO fee_records (student_name, month, amount, status, is_paid)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.StudentName, r.Month, r.Amount, string(r.Status), r.IsPaid); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot reads all three tables in insertion order. The id ordering
// preserves first-appearance order for stable analysis output.
func (s *PostgresStore) Snapshot(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT student_name, class, date, is_present
		FROM attendance_records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read attendance records: %w", err)
	}
	for rows.Next() {
		var r AttendanceRecord
		if err := rows.Scan(&r.StudentName, &r.Class, &r.Date, &r.IsPresent); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ds.Attendance = append(ds.Attendance, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT student_name, subject, test, marks
		FROM marks_records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read marks records: %w", err)
	}
	for rows.Next() {
		var r MarksRecord
		if err := rows.Scan(&r.StudentName, &r.Subject, &r.Test, &r.Marks); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ds.Marks = append(ds.Marks, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT student_name, month, amount, status, is_paid
		FROM fee_records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read fee records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var r FeeRecord
		var status string
		if err := rows.Scan(&r.StudentName, &r.Month, &r.Amount, &status, &r.IsPaid); err != nil {
			return nil, err
		}
		r.Status = FeeStatus(status)
		ds.Fees = append(ds.Fees, r)
	}
	return ds, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		TRUNCATE attendance_records, marks_records, fee_records
	`)
	if err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (int, int, int, error) {
	var attendance, marks, fees int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM attendance_records),
			(SELECT COUNT(*) FROM marks_records),
			(SELECT COUNT(*) FROM fee_records)
	`).Scan(&attendance, &marks, &fees)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return attendance, marks, fees, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
