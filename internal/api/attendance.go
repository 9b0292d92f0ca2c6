package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/rollcall/internal/capture"
	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/identity"
	"github.com/ashureev/rollcall/internal/scan"
)

type scanRequest struct {
	Payload string `json:"payload"`
}

type scanResponse struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
}

func newScanResponse(res domain.RedeemResult) scanResponse {
	return scanResponse{SessionID: res.SessionID, Outcome: res.Outcome.String(), Message: res.Message}
}

// Scan redeems a payload the attendee's device has already decoded.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	p := identity.PrincipalFromContext(r.Context())

	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Payload) == "" {
		DomainError(w, domain.ErrMalformedToken)
		return
	}

	res, err := h.sessions.Redeem(r.Context(), []byte(req.Payload), p.ID)
	if err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, newScanResponse(res))
}

// ScanImage decodes the attendance code from an uploaded camera frame and
// redeems it.
func (h *Handler) ScanImage(w http.ResponseWriter, r *http.Request) {
	p := identity.PrincipalFromContext(r.Context())

	img, err := readImage(w, r, h.opts.MaxImageBytes)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := scan.NewFlow(h.sessions).Run(r.Context(), capture.NewStillDevice(img), p.ID)
	if err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, newScanResponse(res))
}
