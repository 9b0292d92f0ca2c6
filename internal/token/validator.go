package token

import (
	"fmt"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
)

// Validate decodes a scanned payload and checks it in order: structure,
// freshness, then session binding. It is pure and never writes anywhere.
func Validate(raw []byte, activeSessionID string, now time.Time) (domain.Token, error) {
	tok, err := Decode(raw)
	if err != nil {
		return domain.Token{}, err
	}
	if err := Check(tok, activeSessionID, now); err != nil {
		return domain.Token{}, err
	}
	return tok, nil
}

// Check applies the freshness and session binding rules to a decoded token.
func Check(tok domain.Token, activeSessionID string, now time.Time) error {
	if tok.ExpiredAt(now) {
		return fmt.Errorf("%w: expired %s ago", domain.ErrExpiredToken, now.Sub(tok.ExpiresAt).Round(time.Millisecond))
	}
	if activeSessionID == "" {
		return domain.ErrSessionInactive
	}
	if tok.SessionID != activeSessionID {
		return domain.ErrSessionMismatch
	}
	return nil
}
