package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/rollcall/internal/domain"
)

type fakeDirectory map[string]*domain.Student

func (d fakeDirectory) GetStudentByRollNumber(_ context.Context, roll string) (*domain.Student, error) {
	return d[roll], nil
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	dir := fakeDirectory{"CS2021001": {ID: "S001", Name: "Alice Johnson", RollNumber: "CS2021001"}}
	a, err := NewAuthenticator(Credentials{
		PresenterID:       "instructor@school.edu",
		PresenterPassword: "password123",
		AttendeePassword:  "password456",
	}, dir, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	return a
}

func TestLoginPresenter(t *testing.T) {
	a := newTestAuthenticator(t)

	p, err := a.LoginPresenter(" Instructor@School.edu ", "password123")
	if err != nil {
		t.Fatalf("LoginPresenter failed: %v", err)
	}
	if !p.IsPresenter() {
		t.Fatalf("expected presenter principal, got %+v", p)
	}

	if _, err := a.LoginPresenter("instructor@school.edu", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.LoginPresenter("someone@school.edu", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong id, got %v", err)
	}
}

func TestLoginAttendee(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	p, err := a.LoginAttendee(ctx, "CS2021001", "password456")
	if err != nil {
		t.Fatalf("LoginAttendee failed: %v", err)
	}
	if p.Role != domain.RoleAttendee || p.ID != "S001" || p.DisplayName != "Alice Johnson" {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := a.LoginAttendee(ctx, "CS2021999", "password456"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown roll, got %v", err)
	}
	if _, err := a.LoginAttendee(ctx, "CS2021001", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestIssuerRoundTripAndExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	iss, err := NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour, clock)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	raw, err := iss.Issue(&domain.Principal{Role: domain.RoleAttendee, ID: "S001", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	p, err := iss.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.ID != "S001" || p.Role != domain.RoleAttendee || p.DisplayName != "Alice" {
		t.Fatalf("unexpected principal %+v", p)
	}

	now = now.Add(2 * time.Hour)
	if _, err := iss.Parse(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	other, _ := NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), time.Hour, nil)
	if _, err := other.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestMiddlewareAndRoles(t *testing.T) {
	iss, err := NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour, nil)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	raw, _ := iss.Issue(&domain.Principal{Role: domain.RoleAttendee, ID: "S001"})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			t.Error("expected principal in context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	presenterOnly := Middleware(iss)(RequireRole(domain.RolePresenter)(ok))
	attendeeOnly := Middleware(iss)(RequireRole(domain.RoleAttendee)(ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	presenterOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: raw})
	rec = httptest.NewRecorder()
	presenterOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for attendee on presenter route, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderName, "Bearer "+raw)
	rec = httptest.NewRecorder()
	attendeeOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for attendee with bearer token, got %d", rec.Code)
	}
}
