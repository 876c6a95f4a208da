// Package handler exposes loan amortization over JSON HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/inmofin/inmofin/internal/domain/common"
	"github.com/inmofin/inmofin/internal/domain/loans"
	"github.com/inmofin/inmofin/pkg/middleware"
)

// LoansHandler serves the /api/v1/loans endpoints.
type LoansHandler struct {
	logger *slog.Logger
}

// NewLoansHandler constructs a new handler.
func NewLoansHandler(logger *slog.Logger) *LoansHandler {
	return &LoansHandler{logger: logger}
}

type scheduleRequest struct {
	PrincipalCents int64   `json:"principal_cents"`
	AnnualRate     float64 `json:"annual_rate"`
	Months         int     `json:"months"`
	StartDate      string  `json:"start_date"` // YYYY-MM-DD
}

// Schedule handles POST /api/v1/loans/schedule.
func (h *LoansHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest))
		return
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			common.RespondError(w, fmt.Errorf("%w: start_date must be YYYY-MM-DD", common.ErrBadRequest))
			return
		}
		start = parsed
	}

	sched, err := loans.Amortize(req.PrincipalCents, req.AnnualRate, req.Months, start)
	if err != nil {
		if errors.Is(err, loans.ErrInvalidPrincipal) || errors.Is(err, loans.ErrInvalidTerm) || errors.Is(err, loans.ErrNegativeRate) {
			common.RespondError(w, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
			return
		}
		common.RespondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, sched)
}
