package domain

import (
	"time"
)

// Session is the presenter's current attendance window.
type Session struct {
	ID        string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Active    bool      `json:"active"`
}

// Token is the rotating proof-of-presence capsule shown as a QR code.
// It is a plain structural payload, not a MAC.
type Token struct {
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the token is no longer accepted at now.
// A token is still valid at exactly ExpiresAt.
func (t Token) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Remaining returns how long the token stays valid, or 0 once expired.
func (t Token) Remaining(now time.Time) time.Duration {
	if t.ExpiredAt(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// HeadcountResult is the latest oracle (or manual) headcount for a session.
// Count is nil until a headcount has been recorded.
type HeadcountResult struct {
	SessionID string `json:"session_id"`
	Count     *int   `json:"count"`
}
