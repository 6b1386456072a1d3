package attendance

import (
	"context"
	"time"
)

// Store is what the marking service needs from persistence. *Repository
// satisfies it.
type Store interface {
	SessionClass(ctx context.Context, sessionID string) (string, error)
	MarkPresent(ctx context.Context, sessionID, studentID string, now time.Time) (Record, bool, int, error)
	UpdateStatus(ctx context.Context, recordID, status string, note *string) (Record, error)
}

// PayloadResolver turns a scanned payload into an enrolled student id.
type PayloadResolver interface {
	Resolve(ctx context.Context, payload, classID string) (string, error)
}

// MarkResult is what one scan produces. MarkedCount is the distinct record
// count for the session, stable under repeated scans of the same student.
type MarkResult struct {
	StudentID   string `json:"student_id"`
	Record      Record `json:"record"`
	Created     bool   `json:"-"`
	MarkedCount int    `json:"marked_count"`
}

// Service turns scan payloads into idempotent attendance state.
type Service struct {
	store    Store
	resolver PayloadResolver
}

// NewService creates a marking service.
func NewService(store Store, resolver PayloadResolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// Mark resolves a payload against the session's class and upserts the
// student's record. The idempotency key is (session_id, student_id), not the
// scan event, so a scanner repeating the same code 5x/second collapses to one
// row and one count.
func (s *Service) Mark(ctx context.Context, sessionID, payload string) (MarkResult, error) {
	classID, err := s.store.SessionClass(ctx, sessionID)
	if err != nil {
		return MarkResult{}, err
	}

	studentID, err := s.resolver.Resolve(ctx, payload, classID)
	if err != nil {
		return MarkResult{}, err
	}

	rec, created, count, err := s.store.MarkPresent(ctx, sessionID, studentID, time.Now().UTC())
	if err != nil {
		return MarkResult{}, err
	}
	return MarkResult{StudentID: studentID, Record: rec, Created: created, MarkedCount: count}, nil
}

// UpdateStatus is the manual override for a single record.
func (s *Service) UpdateStatus(ctx context.Context, recordID, status string, note *string) (Record, error) {
	if !ValidStatus(status) {
		return Record{}, ErrInvalidStatus
	}
	return s.store.UpdateStatus(ctx, recordID, status, note)
}
