package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"qrattend/internal/attendance"
	"qrattend/internal/directory"
)

// Store is what the manager needs from persistence. *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	GetActiveByClass(ctx context.Context, classID string) (*Session, error)
	MarkedStudents(ctx context.Context, sessionID string) ([]string, error)
	Complete(ctx context.Context, sessionID string, absent []string, now time.Time) ([]attendance.Record, int, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
	DeleteAllRecords(ctx context.Context) (int64, error)
}

// CredentialGate authorizes destructive operations.
type CredentialGate interface {
	Check(credential string) error
}

// RosterEntry is an attendance record joined with display attributes from the
// directory. Display fields are best effort and never authoritative.
type RosterEntry struct {
	attendance.Record
	Name  string `json:"name,omitempty"`
	Index string `json:"index,omitempty"`
}

// CompletionResult is the final state of a session after EndSession.
type CompletionResult struct {
	Session         *Session      `json:"session"`
	Roster          []RosterEntry `json:"roster"`
	AutoAbsentCount int           `json:"auto_absent_count"`
}

// Manager owns the session lifecycle: start, active lookup, completion and the
// destructive clear workflows.
type Manager struct {
	store      Store
	dir        directory.Directory
	gate       CredentialGate
	endTimeout time.Duration
}

// NewManager creates a manager. endTimeout bounds the completion transaction.
func NewManager(store Store, dir directory.Directory, gate CredentialGate, endTimeout time.Duration) *Manager {
	if endTimeout <= 0 {
		endTimeout = 10 * time.Second
	}
	return &Manager{store: store, dir: dir, gate: gate, endTimeout: endTimeout}
}

// Start opens a session for a class. ErrAlreadyActive when one is open.
func (m *Manager) Start(ctx context.Context, classID string) (*Session, error) {
	if classID == "" {
		return nil, fmt.Errorf("class id required")
	}
	s := &Session{ClassID: classID}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	log.Printf("session started: id=%s class=%s", s.ID, s.ClassID)
	return s, nil
}

// Active returns the class's active session, or nil when there is none.
func (m *Manager) Active(ctx context.Context, classID string) (*Session, error) {
	return m.store.GetActiveByClass(ctx, classID)
}

// End runs the completion workflow: every enrolled student without a record
// gets an absent row, then the session flips to completed. The store applies
// the whole transition atomically; a racing Mark either lands before the
// snapshot or is rejected by its own session-active check.
func (m *Manager) End(ctx context.Context, sessionID string) (*CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, m.endTimeout)
	defer cancel()

	s, err := m.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusActive {
		return nil, ErrAlreadyCompleted
	}

	enrolled, err := m.dir.EnrolledStudents(ctx, s.ClassID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	marked, err := m.store.MarkedStudents(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(marked))
	for _, id := range marked {
		seen[id] = true
	}
	var absent []string
	for _, id := range enrolled {
		if !seen[id] {
			absent = append(absent, id)
		}
	}

	records, inserted, err := m.store.Complete(ctx, sessionID, absent, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s.Status = StatusCompleted
	s.EndTime = &now

	roster := make([]RosterEntry, 0, len(records))
	for _, rec := range records {
		entry := RosterEntry{Record: rec}
		if info, err := m.dir.StudentInfo(ctx, rec.StudentID); err == nil {
			entry.Name = info.Name
			entry.Index = info.Index
		}
		roster = append(roster, entry)
	}

	log.Printf("session completed: id=%s class=%s records=%d auto_absent=%d", s.ID, s.ClassID, len(roster), inserted)
	return &CompletionResult{Session: s, Roster: roster, AutoAbsentCount: inserted}, nil
}

// ClearSession deletes a session and all its attendance rows after the
// credential check. Returns the number of attendance rows removed.
func (m *Manager) ClearSession(ctx context.Context, sessionID, credential string) (int64, error) {
	if err := m.gate.Check(credential); err != nil {
		return 0, err
	}
	deleted, err := m.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	log.Printf("session cleared: id=%s deleted=%d", sessionID, deleted)
	return deleted, nil
}

// ClearAll deletes every attendance row across all sessions. Last-resort
// recovery, same credential gate.
func (m *Manager) ClearAll(ctx context.Context, credential string) (int64, error) {
	if err := m.gate.Check(credential); err != nil {
		return 0, err
	}
	deleted, err := m.store.DeleteAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("all attendance cleared: deleted=%d", deleted)
	return deleted, nil
}
