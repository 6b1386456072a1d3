package attendance

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStore mimics the Postgres repo's semantics in memory: one record per
// (session, student), duplicates refresh marked_at only.
type fakeStore struct {
	sessions map[string]struct {
		classID string
		active  bool
	}
	records  map[string]map[string]*Record // sessionID -> studentID -> record
	failMark error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]struct {
			classID string
			active  bool
		}),
		records: make(map[string]map[string]*Record),
	}
}

func (f *fakeStore) addSession(id, classID string, active bool) {
	f.sessions[id] = struct {
		classID string
		active  bool
	}{classID, active}
}

func (f *fakeStore) SessionClass(_ context.Context, sessionID string) (string, error) {
	s, ok := f.sessions[sessionID]
	if !ok || !s.active {
		return "", ErrSessionNotActive
	}
	return s.classID, nil
}

func (f *fakeStore) MarkPresent(_ context.Context, sessionID, studentID string, now time.Time) (Record, bool, int, error) {
	if f.failMark != nil {
		return Record{}, false, 0, f.failMark
	}
	s, ok := f.sessions[sessionID]
	if !ok || !s.active {
		return Record{}, false, 0, ErrSessionNotActive
	}
	if f.records[sessionID] == nil {
		f.records[sessionID] = make(map[string]*Record)
	}
	rec, exists := f.records[sessionID][studentID]
	created := false
	if !exists {
		rec = &Record{
			ID:        sessionID + "/" + studentID,
			SessionID: sessionID,
			StudentID: studentID,
			Status:    StatusPresent,
			MarkedAt:  now,
		}
		f.records[sessionID][studentID] = rec
		created = true
	} else {
		rec.MarkedAt = now
	}
	return *rec, created, len(f.records[sessionID]), nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, recordID, status string, note *string) (Record, error) {
	for _, byStudent := range f.records {
		for _, rec := range byStudent {
			if rec.ID == recordID {
				rec.Status = status
				rec.Note = note
				return *rec, nil
			}
		}
	}
	return Record{}, ErrRecordNotFound
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(_ context.Context, payload, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return payload, nil
}

func TestMarkIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addSession("s1", "cs101", true)
	svc := NewService(store, &fakeResolver{})
	ctx := context.Background()

	first, err := svc.Mark(ctx, "s1", "alice")
	if err != nil {
		t.Fatalf("first Mark() error = %v", err)
	}
	if !first.Created {
		t.Fatal("first scan should create a record")
	}
	if first.MarkedCount != 1 {
		t.Fatalf("marked count = %d, want 1", first.MarkedCount)
	}
	if first.Record.Status != StatusPresent {
		t.Fatalf("status = %q, want present", first.Record.Status)
	}

	// The scanner repeats the same code; count must not move.
	for i := 0; i < 5; i++ {
		dup, err := svc.Mark(ctx, "s1", "alice")
		if err != nil {
			t.Fatalf("duplicate Mark() error = %v", err)
		}
		if dup.Created {
			t.Fatal("duplicate scan must not create a record")
		}
		if dup.MarkedCount != 1 {
			t.Fatalf("duplicate scan changed count to %d", dup.MarkedCount)
		}
		if dup.Record.Status != StatusPresent {
			t.Fatalf("duplicate scan changed status to %q", dup.Record.Status)
		}
	}

	second, err := svc.Mark(ctx, "s1", "bob")
	if err != nil {
		t.Fatalf("Mark(bob) error = %v", err)
	}
	if second.MarkedCount != 2 {
		t.Fatalf("marked count = %d, want 2", second.MarkedCount)
	}
}

func TestMarkDuplicateRefreshesMarkedAt(t *testing.T) {
	store := newFakeStore()
	store.addSession("s1", "cs101", true)
	svc := NewService(store, &fakeResolver{})
	ctx := context.Background()

	first, _ := svc.Mark(ctx, "s1", "alice")
	time.Sleep(2 * time.Millisecond)
	dup, _ := svc.Mark(ctx, "s1", "alice")

	if !dup.Record.MarkedAt.After(first.Record.MarkedAt) {
		t.Fatal("duplicate scan should refresh marked_at for last-seen display")
	}
}

func TestMarkSessionNotActive(t *testing.T) {
	store := newFakeStore()
	store.addSession("done", "cs101", false)
	svc := NewService(store, &fakeResolver{})

	tests := []struct {
		name      string
		sessionID string
	}{
		{"completed session", "done"},
		{"missing session", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Mark(context.Background(), tt.sessionID, "alice")
			if !errors.Is(err, ErrSessionNotActive) {
				t.Fatalf("Mark() error = %v, want ErrSessionNotActive", err)
			}
		})
	}
}

func TestMarkResolverErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.addSession("s1", "cs101", true)
	resolveErr := errors.New("bad payload")
	svc := NewService(store, &fakeResolver{err: resolveErr})

	_, err := svc.Mark(context.Background(), "s1", "garbage")
	if !errors.Is(err, resolveErr) {
		t.Fatalf("Mark() error = %v, want resolver error", err)
	}
	if len(store.records["s1"]) != 0 {
		t.Fatal("failed resolution must not write a record")
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newFakeStore()
	store.addSession("s1", "cs101", false) // completed: overrides still allowed
	store.records["s1"] = map[string]*Record{
		"alice": {ID: "rec1", SessionID: "s1", StudentID: "alice", Status: StatusAbsent},
	}
	svc := NewService(store, &fakeResolver{})
	ctx := context.Background()

	note := "doctor's note"
	rec, err := svc.UpdateStatus(ctx, "rec1", StatusExcused, &note)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if rec.Status != StatusExcused || rec.Note == nil || *rec.Note != note {
		t.Fatalf("UpdateStatus() = %+v, want excused with note", rec)
	}

	if _, err := svc.UpdateStatus(ctx, "missing", StatusLate, nil); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("UpdateStatus(missing) error = %v, want ErrRecordNotFound", err)
	}

	if _, err := svc.UpdateStatus(ctx, "rec1", "vanished", nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("UpdateStatus(bad status) error = %v, want ErrInvalidStatus", err)
	}
}

func TestMarkStorageErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	store.addSession("s1", "cs101", true)
	store.failMark = errors.New("connection reset")
	svc := NewService(store, &fakeResolver{})

	_, err := svc.Mark(context.Background(), "s1", "alice")
	if err == nil {
		t.Fatal("storage failure must surface to the caller for retry")
	}
}
