package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashureev/rollcall/internal/domain"
)

const issuerName = "rollcall"

var (
	ErrTokenInvalid = errors.New("auth token is invalid")
	ErrTokenExpired = errors.New("auth token is expired")
)

// principalClaims is the internal claims type used for JWT parsing.
type principalClaims struct {
	jwt.RegisteredClaims
	Role        string `json:"role"`
	DisplayName string `json:"name"`
}

// Issuer signs and verifies login tokens with HMAC-SHA256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. now may be nil.
func NewIssuer(secret []byte, ttl time.Duration, now func() time.Time) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("auth ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: secret, ttl: ttl, now: now}, nil
}

// TTL returns the token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for p.
func (i *Issuer) Issue(p *domain.Principal) (string, error) {
	now := i.now().UTC()
	claims := principalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the principal it names.
func (i *Issuer) Parse(raw string) (*domain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	var parsed principalClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if parsed.Issuer != issuerName || parsed.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if parsed.ExpiresAt == nil || !parsed.ExpiresAt.Time.After(i.now()) {
		return nil, ErrTokenExpired
	}

	role := domain.Role(parsed.Role)
	if role != domain.RolePresenter && role != domain.RoleAttendee {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, parsed.Role)
	}
	return &domain.Principal{Role: role, ID: parsed.Subject, DisplayName: parsed.DisplayName}, nil
}
