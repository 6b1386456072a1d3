package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"qrattend/internal/attendance"
)

// Repository persists sessions and their attendance rows in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an active session. The partial unique index on
// sessions(class_id) WHERE status='active' is what actually enforces
// at-most-one-active; a violation surfaces as ErrAlreadyActive.
func (r *Repository) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	s.Status = StatusActive
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, class_id, status, start_time)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.ClassID, s.Status, s.StartTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyActive
		}
		return err
	}
	return nil
}

// GetByID returns a session by id, ErrNotFound when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, status, start_time, end_time
		FROM sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.ClassID, &s.Status, &s.StartTime, &s.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetActiveByClass returns the active session for a class, or nil when the
// class has none.
func (r *Repository) GetActiveByClass(ctx context.Context, classID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, status, start_time, end_time
		FROM sessions WHERE class_id = $1 AND status = $2
	`, classID, StatusActive)
	var s Session
	if err := row.Scan(&s.ID, &s.ClassID, &s.Status, &s.StartTime, &s.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// MarkedStudents returns the distinct student ids that already have a record
// in the session.
func (r *Repository) MarkedStudents(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id FROM attendance_records WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Complete transitions a session to completed in one transaction: the session
// row is locked FOR UPDATE so no Mark (which takes FOR SHARE) can slip in
// between the absent-row inserts and the status flip. Returns the full set of
// records and how many absent rows were written. Any failure rolls the whole
// transition back.
func (r *Repository) Complete(ctx context.Context, sessionID string, absent []string, now time.Time) ([]attendance.Record, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	var status string
	row := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, sessionID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	if status != StatusActive {
		return nil, 0, ErrAlreadyCompleted
	}

	inserted := 0
	for _, studentID := range absent {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_records (id, session_id, student_id, status, marked_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (session_id, student_id) DO NOTHING
		`, uuid.NewString(), sessionID, studentID, attendance.StatusAbsent, now)
		if err != nil {
			return nil, 0, fmt.Errorf("auto-absent insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, 0, err
		}
		inserted += int(n)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET status = $2, end_time = $3 WHERE id = $1
	`, sessionID, StatusCompleted, now); err != nil {
		return nil, 0, fmt.Errorf("complete session: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, session_id, student_id, status, marked_at, note
		FROM attendance_records WHERE session_id = $1
		ORDER BY student_id
	`, sessionID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var records []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.Status, &rec.MarkedAt, &rec.Note); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return records, inserted, nil
}

// DeleteSession removes a session and its attendance rows, returning how many
// rows were deleted. The session row goes too, so a fresh StartSession for the
// class is immediately possible.
func (r *Repository) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, ErrNotFound
	}

	return deleted, tx.Commit()
}

// DeleteAllRecords wipes every attendance row across all sessions.
func (r *Repository) DeleteAllRecords(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
