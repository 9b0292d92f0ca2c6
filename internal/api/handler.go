// Package api provides HTTP handlers for the attendance API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/headcount"
	"github.com/ashureev/rollcall/internal/identity"
	"github.com/ashureev/rollcall/internal/session"
	"github.com/ashureev/rollcall/internal/store"
)

// Options holds tunables for the handlers.
type Options struct {
	QRSize        int
	MaxImageBytes int64
	OracleTimeout time.Duration
	SecureCookies bool
}

// Handler serves the attendance API.
type Handler struct {
	repo     store.Repository
	sessions *session.Controller
	auth     *identity.Authenticator
	issuer   *identity.Issuer
	oracle   headcount.Oracle
	opts     Options
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(repo store.Repository, sessions *session.Controller, auth *identity.Authenticator, issuer *identity.Issuer, oracle headcount.Oracle, opts Options) *Handler {
	if oracle == nil {
		oracle = headcount.Disabled{}
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 8 << 20
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 30 * time.Second
	}
	return &Handler{
		repo:     repo,
		sessions: sessions,
		auth:     auth,
		issuer:   issuer,
		oracle:   oracle,
		opts:     opts,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/presenter", h.LoginPresenter)
		r.Post("/auth/attendee", h.LoginAttendee)
		r.Post("/auth/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireAuth)
			r.Get("/me", h.GetMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireRole(domain.RolePresenter))
			r.Get("/students", h.ListStudents)
			r.Post("/session/start", h.StartSession)
			r.Post("/session/stop", h.StopSession)
			r.Get("/session", h.GetSession)
			r.Get("/session/qr.png", h.GetQR)
			r.Get("/session/roster", h.GetRoster)
			r.Get("/session/summary", h.GetSummary)
			r.Post("/session/headcount", h.EstimateHeadcount)
			r.Put("/session/headcount", h.RecordHeadcount)
		})

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireRole(domain.RoleAttendee))
			r.Post("/attendance/scan", h.Scan)
			r.Post("/attendance/scan-image", h.ScanImage)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DomainError writes err as user-facing text with a status and a stable
// machine-readable code.
func DomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	JSON(w, status, map[string]string{
		"error": domain.UserMessage(err),
		"code":  code,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedToken):
		return http.StatusUnprocessableEntity, "malformed_token"
	case errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnprocessableEntity, "expired_token"
	case errors.Is(err, domain.ErrSessionMismatch):
		return http.StatusUnprocessableEntity, "session_mismatch"
	case errors.Is(err, domain.ErrSessionInactive):
		return http.StatusConflict, "session_inactive"
	case errors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict, "session_active"
	case errors.Is(err, domain.ErrSessionChanged):
		return http.StatusConflict, "session_changed"
	case errors.Is(err, domain.ErrInvalidImage):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, domain.ErrCameraUnavailable):
		return http.StatusBadRequest, "camera_unavailable"
	case errors.Is(err, domain.ErrNoCodeFound):
		return http.StatusUnprocessableEntity, "no_code_found"
	case errors.Is(err, domain.ErrOracleUnavailable):
		return http.StatusServiceUnavailable, "oracle_unavailable"
	case errors.Is(err, domain.ErrOracleMalformedResponse):
		return http.StatusBadGateway, "oracle_malformed_response"
	case errors.Is(err, domain.ErrNegativeCount):
		return http.StatusBadRequest, "negative_count"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domain.ErrStoreWrite):
		return http.StatusInternalServerError, "store_write_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(v)
}
