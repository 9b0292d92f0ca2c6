package domain

import (
	"time"
)

// RecordOutcome is the result of an idempotent attendance write.
type RecordOutcome int

const (
	// Inserted means this call created the record.
	Inserted RecordOutcome = iota + 1
	// AlreadyPresent means a record for the pair already existed; nothing was written.
	AlreadyPresent
)

func (o RecordOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// AttendanceRecord is created at most once per (AttendeeID, SessionID).
type AttendanceRecord struct {
	ID         string    `json:"id"`
	AttendeeID string    `json:"attendee_id"`
	SessionID  string    `json:"session_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UnknownStudentName is displayed for records whose attendee is missing
// from the student directory.
const UnknownStudentName = "Unknown Student"

// RosterEntry is an attendance record joined with the attendee's display name.
type RosterEntry struct {
	AttendeeID  string    `json:"attendee_id"`
	DisplayName string    `json:"display_name"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Roster is the presenter-visible, derived view of a session's attendance.
type Roster struct {
	SessionID   string        `json:"session_id"`
	Entries     []RosterEntry `json:"entries"`
	PublishedAt time.Time     `json:"published_at"`
}

// Len returns the number of entries.
func (r Roster) Len() int {
	return len(r.Entries)
}

// RedeemResult is returned to an attendee after a successful scan.
type RedeemResult struct {
	SessionID string        `json:"session_id"`
	Outcome   RecordOutcome `json:"-"`
	Message   string        `json:"message"`
}

// Recorded is true for the first successful scan of the session.
func (r RedeemResult) Recorded() bool {
	return r.Outcome == Inserted
}
