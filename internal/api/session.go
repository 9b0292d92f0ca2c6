package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/headcount"
	"github.com/ashureev/rollcall/internal/token"
)

type tokenView struct {
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Payload   string    `json:"payload"`
}

type sessionView struct {
	Session         domain.Session         `json:"session"`
	Token           *tokenView             `json:"token"`
	Roster          domain.Roster          `json:"roster"`
	Headcount       domain.HeadcountResult `json:"headcount"`
	RotationSeconds int                    `json:"rotation_seconds"`
}

func newTokenView(t domain.Token) (*tokenView, error) {
	payload, err := token.Encode(t)
	if err != nil {
		return nil, err
	}
	return &tokenView{
		SessionID: t.SessionID,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
		Payload:   string(payload),
	}, nil
}

// ListStudents returns the student directory.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.repo.ListStudents(r.Context())
	if err != nil {
		slog.Error("Failed to list students", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	if students == nil {
		students = []*domain.Student{}
	}
	JSON(w, http.StatusOK, students)
}

// StartSession starts a new attendance session.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Start(); err != nil {
		DomainError(w, err)
		return
	}
	h.GetSession(w, r)
}

// StopSession stops the running session.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	ended, err := h.sessions.Stop()
	if err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"stopped_session_id": ended.ID,
		"roster":             h.sessions.Snapshot().Roster,
	})
}

// GetSession returns the session state, current token, roster and headcount.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Snapshot()
	view := sessionView{
		Session:         st.Session,
		Roster:          st.Roster,
		Headcount:       st.Headcount,
		RotationSeconds: int(h.sessions.RotationPeriod().Seconds()),
	}
	if view.Roster.Entries == nil {
		view.Roster.Entries = []domain.RosterEntry{}
	}
	if st.Token != nil {
		tv, err := newTokenView(*st.Token)
		if err != nil {
			slog.Error("Failed to encode token", "error", err)
			Error(w, http.StatusInternalServerError, "failed to encode token")
			return
		}
		view.Token = tv
	}
	JSON(w, http.StatusOK, view)
}

// GetQR renders the current token as a PNG QR code.
func (h *Handler) GetQR(w http.ResponseWriter, r *http.Request) {
	tok, err := h.sessions.CurrentToken()
	if err != nil {
		DomainError(w, err)
		return
	}
	png, err := token.RenderPNG(tok, h.opts.QRSize)
	if err != nil {
		slog.Error("Failed to render QR code", "session_id", tok.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Token-Expires-At", tok.ExpiresAt.UTC().Format(time.RFC3339Nano))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		slog.Debug("Failed to write QR code", "error", err)
	}
}

// GetRoster returns the last published roster.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	ro := h.sessions.Snapshot().Roster
	if ro.Entries == nil {
		ro.Entries = []domain.RosterEntry{}
	}
	JSON(w, http.StatusOK, ro)
}

// GetSummary compares the roster with the directory size and the headcount.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Snapshot()
	students, err := h.repo.ListStudents(r.Context())
	if err != nil {
		slog.Error("Failed to list students", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	JSON(w, http.StatusOK, headcount.Reconcile(st.Roster.Len(), len(students), st.Headcount.Count))
}
