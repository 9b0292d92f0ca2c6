package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/identity"
)

type presenterLogin struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type attendeeLogin struct {
	RollNumber string `json:"roll_number"`
	Password   string `json:"password"`
}

// LoginPresenter checks the presenter credential pair and sets the auth cookie.
func (h *Handler) LoginPresenter(w http.ResponseWriter, r *http.Request) {
	var req presenterLogin
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.auth.LoginPresenter(req.ID, req.Password)
	if err != nil {
		slog.Warn("Presenter login failed", "ip", identity.IPFromRequest(r))
		DomainError(w, err)
		return
	}
	h.completeLogin(w, p)
}

// LoginAttendee checks the roll number and shared password and sets the auth cookie.
func (h *Handler) LoginAttendee(w http.ResponseWriter, r *http.Request) {
	var req attendeeLogin
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.auth.LoginAttendee(r.Context(), req.RollNumber, req.Password)
	if err != nil {
		slog.Warn("Attendee login failed", "roll_number", req.RollNumber, "error", err)
		DomainError(w, err)
		return
	}
	h.completeLogin(w, p)
}

func (h *Handler) completeLogin(w http.ResponseWriter, p *domain.Principal) {
	signed, err := h.issuer.Issue(p)
	if err != nil {
		slog.Error("Failed to issue auth token", "error", err)
		Error(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	identity.SetCookie(w, signed, h.issuer.TTL(), h.opts.SecureCookies)
	slog.Info("Logged in", "role", p.Role, "id", p.ID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"principal": p,
		"token":     signed,
	})
}

// Logout clears the auth cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity.ClearCookie(w, h.opts.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// GetMe returns the current principal.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, identity.PrincipalFromContext(r.Context()))
}
