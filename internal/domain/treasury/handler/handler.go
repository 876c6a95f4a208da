// Package handler exposes treasury record validation and listing over
// JSON HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/common"
	"github.com/inmofin/inmofin/internal/domain/treasury/repository"
	"github.com/inmofin/inmofin/internal/domain/treasury/validate"
	"github.com/inmofin/inmofin/pkg/middleware"
)

// TreasuryHandler serves the /api/v1/treasury endpoints.
type TreasuryHandler struct {
	repo   repository.TreasuryRepository
	logger *slog.Logger
}

// NewTreasuryHandler constructs a new handler.
func NewTreasuryHandler(repo repository.TreasuryRepository, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{repo: repo, logger: logger}
}

// recordPayload is the wire form of a treasury record.
type recordPayload struct {
	Kind        validate.RecordKind `json:"kind"`
	Concept     string              `json:"concept"`
	Date        time.Time           `json:"date"`
	AmountCents int64               `json:"amount_cents"`
	BaseCents   int64               `json:"base_cents,omitempty"`
	TaxCents    int64               `json:"tax_cents,omitempty"`
	Category    string              `json:"category,omitempty"`
	Origin      validate.OriginType `json:"origin"`
	PropertyID  *uuid.UUID          `json:"property_id,omitempty"`
	AccountID   *uuid.UUID          `json:"account_id,omitempty"`
}

func (p recordPayload) toDomain() validate.Record {
	return validate.Record{
		Kind:        p.Kind,
		Concept:     p.Concept,
		Date:        p.Date,
		AmountCents: p.AmountCents,
		BaseCents:   p.BaseCents,
		TaxCents:    p.TaxCents,
		Category:    p.Category,
		Origin:      p.Origin,
		PropertyID:  p.PropertyID,
		AccountID:   p.AccountID,
	}
}

type validateBatchRequest struct {
	Records []recordPayload `json:"records"`
}

// ValidateBatch handles POST /api/v1/treasury/validate: runs the rules
// over a batch without persisting anything.
func (h *TreasuryHandler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var req validateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest))
		return
	}
	if len(req.Records) == 0 {
		common.RespondError(w, fmt.Errorf("%w: records are required", common.ErrBadRequest))
		return
	}

	records := make([]validate.Record, 0, len(req.Records))
	for _, p := range req.Records {
		records = append(records, p.toDomain())
	}

	common.RespondJSON(w, http.StatusOK, validate.ValidateBatch(records))
}

// CreateRecord handles POST /api/v1/treasury/records: validates one
// record and persists it when valid.
func (h *TreasuryHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var payload recordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest))
		return
	}

	record := payload.toDomain()
	var result validate.Result
	switch record.Kind {
	case validate.KindIngreso:
		result = validate.ValidateIngreso(record)
	case validate.KindCAPEX:
		result = validate.ValidateCAPEX(record)
	case validate.KindGasto:
		result = validate.ValidateGasto(record)
	default:
		common.RespondError(w, fmt.Errorf("%w: unknown record kind %q", common.ErrBadRequest, record.Kind))
		return
	}

	if !result.IsValid {
		common.RespondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	stored, err := h.repo.CreateRecord(r.Context(), userID, record, nil)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, map[string]any{
		"record":   toRecordResponse(stored),
		"warnings": result.Warnings,
	})
}

type recordResponse struct {
	ID          uuid.UUID           `json:"id"`
	Kind        validate.RecordKind `json:"kind"`
	Concept     string              `json:"concept"`
	Date        time.Time           `json:"date"`
	AmountCents int64               `json:"amount_cents"`
	BaseCents   int64               `json:"base_cents,omitempty"`
	TaxCents    int64               `json:"tax_cents,omitempty"`
	Category    string              `json:"category,omitempty"`
	PropertyID  *uuid.UUID          `json:"property_id,omitempty"`
	AccountID   *uuid.UUID          `json:"account_id,omitempty"`
	SourceItem  *uuid.UUID          `json:"source_item_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toRecordResponse(s *repository.StoredRecord) recordResponse {
	return recordResponse{
		ID:          s.ID,
		Kind:        s.Kind,
		Concept:     s.Concept,
		Date:        s.Date,
		AmountCents: s.AmountCents,
		BaseCents:   s.BaseCents,
		TaxCents:    s.TaxCents,
		Category:    s.Category,
		PropertyID:  s.PropertyID,
		AccountID:   s.AccountID,
		SourceItem:  s.SourceItem,
		CreatedAt:   s.CreatedAt,
	}
}

// ListRecords handles GET /api/v1/treasury/records with an optional
// ?kind= filter.
func (h *TreasuryHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var kind *validate.RecordKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := validate.RecordKind(raw)
		kind = &k
	}

	records, err := h.repo.ListRecords(r.Context(), userID, kind)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, s := range records {
		out = append(out, toRecordResponse(s))
	}
	common.RespondJSON(w, http.StatusOK, out)
}
