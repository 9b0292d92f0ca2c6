// Package headcount estimates how many people are in a classroom photo and
// reconciles the estimate against the scanned roster.
package headcount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/rollcall/internal/domain"
)

// Prompt is the instruction sent alongside the image to vision backends.
const Prompt = "Count the number of people in this image. Respond with only a single integer number."

// Backend names accepted by configuration.
const (
	BackendHTTP   = "http"
	BackendGemini = "gemini"
	BackendNone   = "none"
)

// Oracle estimates a person count from a JPEG image. Implementations fail
// with domain.ErrOracleUnavailable or domain.ErrOracleMalformedResponse and
// never return a guessed zero.
type Oracle interface {
	Estimate(ctx context.Context, jpeg []byte) (int, error)
}

// Disabled is the oracle used when no backend is configured.
type Disabled struct{}

// Estimate always reports the oracle as unavailable.
func (Disabled) Estimate(context.Context, []byte) (int, error) {
	return 0, fmt.Errorf("%w: no headcount backend configured", domain.ErrOracleUnavailable)
}

// callError maps a failed backend call. A deadline is a slow or unreachable
// backend and wraps domain.ErrOracleUnavailable; only a caller cancel is
// returned as-is.
func callError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
}

// ParseCount normalizes an oracle reply into a non-negative integer. It
// accepts bare numeric text, {"count": n}, and {"text": "n"}.
func ParseCount(body []byte) (int, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return 0, fmt.Errorf("%w: empty reply", domain.ErrOracleMalformedResponse)
	}

	if n, ok := parseNumberText(raw); ok {
		return n, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrOracleMalformedResponse, truncate(raw))
	}

	if v, ok := obj["count"]; ok {
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			if n, ok := toCount(f); ok {
				return n, nil
			}
		}
		return 0, fmt.Errorf("%w: count %s", domain.ErrOracleMalformedResponse, truncate(string(v)))
	}

	if v, ok := obj["text"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if n, ok := parseNumberText(strings.TrimSpace(s)); ok {
				return n, nil
			}
		}
		return 0, fmt.Errorf("%w: text %s", domain.ErrOracleMalformedResponse, truncate(string(v)))
	}

	return 0, fmt.Errorf("%w: no count in reply", domain.ErrOracleMalformedResponse)
}

// parseNumberText accepts an integer, optionally quoted or followed by a
// full stop, which is how vision models usually answer the prompt.
func parseNumberText(s string) (int, bool) {
	s = strings.Trim(s, "\"")
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return toCount(f)
	}
	return 0, false
}

func toCount(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func truncate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
