package token

import (
	"time"

	"github.com/ashureev/rollcall/internal/domain"
)

// DefaultRotationPeriod is how long each minted token is valid and how
// often a new one replaces it.
const DefaultRotationPeriod = 30 * time.Second

// Minter produces time-windowed tokens bound to a session.
type Minter struct {
	period time.Duration
}

// NewMinter creates a minter. A non-positive period falls back to the default.
func NewMinter(period time.Duration) *Minter {
	if period <= 0 {
		period = DefaultRotationPeriod
	}
	return &Minter{period: period}
}

// Period returns the rotation period.
func (m *Minter) Period() time.Duration {
	return m.period
}

// Mint returns a token issued at now and expiring one period later.
// Times are truncated to milliseconds so the token survives the wire format unchanged.
func (m *Minter) Mint(sessionID string, now time.Time) domain.Token {
	issued := time.UnixMilli(now.UnixMilli())
	return domain.Token{
		SessionID: sessionID,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(m.period),
	}
}
