package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/rollcall/internal/capture"
	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/headcount"
)

type headcountRequest struct {
	Count *int `json:"count"`
}

// EstimateHeadcount sends an uploaded classroom photo to the oracle and
// records the result against the session the photo was taken in. The oracle
// is called once per request.
func (h *Handler) EstimateHeadcount(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Snapshot().Session
	if !sess.Active {
		DomainError(w, domain.ErrSessionInactive)
		return
	}

	img, err := readImage(w, r, h.opts.MaxImageBytes)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.OracleTimeout)
	defer cancel()

	count, err := headcount.Estimate(ctx, capture.NewStillDevice(img), h.oracle)
	if err != nil {
		slog.Warn("Headcount estimate failed", "session_id", sess.ID, "error", err)
		DomainError(w, err)
		return
	}

	res, err := h.sessions.RecordHeadcountFor(sess.ID, count)
	if err != nil {
		slog.Warn("Headcount discarded", "session_id", sess.ID, "count", count, "error", err)
	}
	h.writeHeadcount(w, r, res, err)
}

// RecordHeadcount stores a headcount entered by the presenter.
func (h *Handler) RecordHeadcount(w http.ResponseWriter, r *http.Request) {
	var req headcountRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Count == nil {
		Error(w, http.StatusBadRequest, "count is required")
		return
	}
	res, err := h.sessions.RecordHeadcount(*req.Count)
	h.writeHeadcount(w, r, res, err)
}

func (h *Handler) writeHeadcount(w http.ResponseWriter, r *http.Request, res domain.HeadcountResult, err error) {
	if err != nil {
		DomainError(w, err)
		return
	}
	students, err := h.repo.ListStudents(r.Context())
	if err != nil {
		slog.Error("Failed to list students", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	present := h.sessions.Snapshot().Roster.Len()
	JSON(w, http.StatusOK, map[string]interface{}{
		"headcount": res,
		"summary":   headcount.Reconcile(present, len(students), res.Count),
	})
}
