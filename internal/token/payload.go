// Package token mints, serializes, renders and validates rotating attendance tokens.
package token

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
)

// payload is the JSON carried inside the QR code.
type payload struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Encode serializes a token to its wire form:
// {"sessionId": "...", "timestamp": <unix ms>, "expiresAt": <unix ms>}.
func Encode(t domain.Token) ([]byte, error) {
	data, err := json.Marshal(payload{
		SessionID: t.SessionID,
		Timestamp: t.IssuedAt.UnixMilli(),
		ExpiresAt: t.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	return data, nil
}

// Decode parses a scanned payload. Every field must be present and
// well-typed, otherwise the error wraps domain.ErrMalformedToken.
func Decode(raw []byte) (domain.Token, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Token{}, fmt.Errorf("%w: not a JSON object", domain.ErrMalformedToken)
	}

	var sessionID string
	if err := decodeField(fields, "sessionId", &sessionID); err != nil {
		return domain.Token{}, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return domain.Token{}, fmt.Errorf("%w: empty sessionId", domain.ErrMalformedToken)
	}

	issued, err := decodeMillis(fields, "timestamp")
	if err != nil {
		return domain.Token{}, err
	}
	expires, err := decodeMillis(fields, "expiresAt")
	if err != nil {
		return domain.Token{}, err
	}
	if expires < issued {
		return domain.Token{}, fmt.Errorf("%w: expiresAt before timestamp", domain.ErrMalformedToken)
	}

	return domain.Token{
		SessionID: sessionID,
		IssuedAt:  time.UnixMilli(issued),
		ExpiresAt: time.UnixMilli(expires),
	}, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedToken, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: bad %s", domain.ErrMalformedToken, name)
	}
	return nil
}

// decodeMillis accepts a JSON number of milliseconds since the epoch.
// Strings are rejected even if they look numeric.
func decodeMillis(fields map[string]json.RawMessage, name string) (int64, error) {
	var v float64
	if err := decodeField(fields, name, &v); err != nil {
		return 0, err
	}
	if v <= 0 || v > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: %s out of range", domain.ErrMalformedToken, name)
	}
	return int64(v), nil
}
