package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SessionClass returns the class of an active session. ErrSessionNotActive
// when the session is missing or completed, so the scanner stops either way.
func (r *Repository) SessionClass(ctx context.Context, sessionID string) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class_id, status FROM sessions WHERE id = $1
	`, sessionID)
	var classID, status string
	if err := row.Scan(&classID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotActive
		}
		return "", err
	}
	if status != "active" {
		return "", ErrSessionNotActive
	}
	return classID, nil
}

// MarkPresent is the idempotent upsert at the heart of the engine. It runs in
// a transaction that takes FOR SHARE on the session row: completion takes FOR
// UPDATE, so a mark racing with EndSession either commits before the absent
// snapshot or fails the active check here. The unique constraint on
// (session_id, student_id) collapses duplicate scans even when two arrive at
// once; a duplicate refreshes marked_at but never touches status.
// Returns the record, whether it was newly created, and the distinct-marked
// row count for the session.
func (r *Repository) MarkPresent(ctx context.Context, sessionID, studentID string, now time.Time) (Record, bool, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, false, 0, err
	}
	defer tx.Rollback()

	var status string
	row := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1 FOR SHARE`, sessionID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, 0, ErrSessionNotActive
		}
		return Record{}, false, 0, err
	}
	if status != "active" {
		return Record{}, false, 0, ErrSessionNotActive
	}

	rec := Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		StudentID: studentID,
		Status:    StatusPresent,
		MarkedAt:  now,
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, marked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, rec.ID, rec.SessionID, rec.StudentID, rec.Status, rec.MarkedAt)
	if err != nil {
		return Record{}, false, 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, 0, err
	}
	created := n == 1

	if !created {
		row := tx.QueryRowContext(ctx, `
			UPDATE attendance_records SET marked_at = $3
			WHERE session_id = $1 AND student_id = $2
			RETURNING id, status, marked_at, note
		`, sessionID, studentID, now)
		if err := row.Scan(&rec.ID, &rec.Status, &rec.MarkedAt, &rec.Note); err != nil {
			return Record{}, false, 0, err
		}
	}

	var count int
	row = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records WHERE session_id = $1`, sessionID)
	if err := row.Scan(&count); err != nil {
		return Record{}, false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return Record{}, false, 0, err
	}
	return rec, created, count, nil
}

// UpdateStatus is the manual override. Deliberately no session-active check:
// corrections after completion are allowed.
func (r *Repository) UpdateStatus(ctx context.Context, recordID, status string, note *string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET status = $2, note = $3, marked_at = NOW()
		WHERE id = $1
		RETURNING id, session_id, student_id, status, marked_at, note
	`, recordID, status, note)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.Status, &rec.MarkedAt, &rec.Note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// CountMarked counts the session's non-absent records. Plain MVCC read so
// dashboard polling never blocks a writer.
func (r *Repository) CountMarked(ctx context.Context, sessionID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE session_id = $1 AND status <> $2
	`, sessionID, StatusAbsent)
	var count int
	err := row.Scan(&count)
	return count, err
}

// InsertScanEvent appends one raw scan to the audit trail.
func (r *Repository) InsertScanEvent(ctx context.Context, ev ScanEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_events (session_id, student_id, duplicate, scanned_at)
		VALUES ($1, $2, $3, $4)
	`, ev.SessionID, ev.StudentID, ev.Duplicate, ev.At)
	return err
}
