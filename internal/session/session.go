package session

import "time"

// Session statuses. A session is created active and ends completed; there is
// no way back.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Session is the time-bounded attendance window for one class meeting.
type Session struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}
