package attendance

import "time"

// Attendance statuses. Everything except absent counts as "marked" for
// progress display.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusExcused = "excused"
	StatusAbsent  = "absent"
)

// ValidStatus reports whether s is one of the known attendance statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusLate, StatusExcused, StatusAbsent:
		return true
	}
	return false
}

// Record is one student's attendance state within one session. Unique per
// (session_id, student_id); repeated scans update this row, never add another.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Status    string    `json:"status"`
	MarkedAt  time.Time `json:"marked_at"`
	Note      *string   `json:"note,omitempty"`
}

// ScanEvent is the raw audit form of one decode event, including collapsed
// duplicates. Published to the queue and persisted by the worker.
type ScanEvent struct {
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Duplicate bool      `json:"duplicate"`
	At        time.Time `json:"at"`
}
