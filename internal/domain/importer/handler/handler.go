// Package handler exposes the statement import pipeline over JSON HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/common"
	"github.com/inmofin/inmofin/internal/domain/importer/repository"
	"github.com/inmofin/inmofin/internal/domain/importer/service"
	"github.com/inmofin/inmofin/pkg/middleware"
	"github.com/inmofin/inmofin/pkg/observability"
)

// maxUploadBytes caps statement uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// ImportHandler serves the /api/v1/import endpoints.
type ImportHandler struct {
	svc    *service.ImportService
	logger *slog.Logger
}

// NewImportHandler constructs a new handler.
func NewImportHandler(svc *service.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, logger: logger}
}

// mappingPayload is the wire form of a column mapping.
type mappingPayload struct {
	DateCol          int    `json:"date_col"`
	DescCol          int    `json:"desc_col"`
	AmountCol        int    `json:"amount_col"`
	DebitCol         int    `json:"debit_col"`
	CreditCol        int    `json:"credit_col"`
	IsDoubleEntry    bool   `json:"is_double_entry"`
	IsEuropeanFormat bool   `json:"is_european_format"`
	DateFormat       string `json:"date_format"`
}

func (p mappingPayload) toService() service.ColumnMapping {
	return service.ColumnMapping{
		DateCol:          p.DateCol,
		DescCol:          p.DescCol,
		AmountCol:        p.AmountCol,
		DebitCol:         p.DebitCol,
		CreditCol:        p.CreditCol,
		IsDoubleEntry:    p.IsDoubleEntry,
		IsEuropeanFormat: p.IsEuropeanFormat,
		DateFormat:       p.DateFormat,
	}
}

type analyzeResponse struct {
	HeaderRow        int              `json:"header_row"`
	SkipRows         int              `json:"skip_rows"`
	Headers          []string         `json:"headers"`
	Confidence       float64          `json:"confidence"`
	Fingerprint      string           `json:"fingerprint"`
	SampleRows       [][]string       `json:"sample_rows,omitempty"`
	Suggested        *mappingPayload  `json:"suggested_mapping,omitempty"`
	ProfileFound     bool             `json:"profile_found"`
	Profile          *profileResponse `json:"profile,omitempty"`
	CanAutoImport    bool             `json:"can_auto_import"`
	FallbackRequired bool             `json:"fallback_required"`
}

type profileResponse struct {
	ID               uuid.UUID `json:"id"`
	BankName         string    `json:"bank_name,omitempty"`
	Fingerprint      string    `json:"fingerprint"`
	SkipRows         int       `json:"skip_rows"`
	DateFormat       string    `json:"date_format"`
	DateCol          int       `json:"date_col"`
	DescCol          int       `json:"desc_col"`
	AmountCol        *int      `json:"amount_col,omitempty"`
	DebitCol         *int      `json:"debit_col,omitempty"`
	CreditCol        *int      `json:"credit_col,omitempty"`
	IsEuropeanFormat bool      `json:"is_european_format"`
	IsGlobal         bool      `json:"is_global"`
}

func toProfileResponse(p *repository.BankProfile) *profileResponse {
	if p == nil {
		return nil
	}
	resp := &profileResponse{
		ID:               p.ID,
		Fingerprint:      p.Fingerprint,
		SkipRows:         p.SkipRows,
		DateFormat:       p.DateFormat,
		DateCol:          p.DateCol,
		DescCol:          p.DescCol,
		AmountCol:        p.AmountCol,
		DebitCol:         p.DebitCol,
		CreditCol:        p.CreditCol,
		IsEuropeanFormat: p.IsEuropeanFormat,
		IsGlobal:         p.UserID == nil,
	}
	if p.BankName != nil {
		resp.BankName = *p.BankName
	}
	return resp
}

// Analyze handles POST /api/v1/import/analyze: multipart upload with a
// "file" part; responds with the detected layout and mapping suggestion.
func (h *ImportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	fileName, data, err := readUpload(r)
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
		return
	}

	result, err := h.svc.Analyze(r.Context(), userID, fileName, data)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	resp := analyzeResponse{
		ProfileFound:     result.ProfileFound,
		Profile:          toProfileResponse(result.Profile),
		CanAutoImport:    result.CanAutoImport,
		FallbackRequired: result.FallbackRequired,
	}
	if result.Layout != nil {
		resp.HeaderRow = result.Layout.HeaderRow
		resp.SkipRows = result.Layout.SkipRows
		resp.Headers = result.Layout.Headers
		resp.Confidence = result.Layout.Confidence
		resp.Fingerprint = result.Layout.Fingerprint
		resp.SampleRows = result.Layout.SampleRows
	}
	if result.Suggestions != nil {
		resp.Suggested = &mappingPayload{
			DateCol:       result.Suggestions.DateCol,
			DescCol:       result.Suggestions.DescCol,
			AmountCol:     result.Suggestions.AmountCol,
			DebitCol:      result.Suggestions.DebitCol,
			CreditCol:     result.Suggestions.CreditCol,
			IsDoubleEntry: result.Suggestions.IsDoubleEntry,
		}
	}

	common.RespondJSON(w, http.StatusOK, resp)
}

type saveProfileRequest struct {
	Fingerprint string         `json:"fingerprint"`
	BankName    string         `json:"bank_name"`
	SkipRows    int            `json:"skip_rows"`
	Mapping     mappingPayload `json:"mapping"`
}

// SaveProfile handles POST /api/v1/import/profiles.
func (h *ImportHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var req saveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest))
		return
	}
	if req.Fingerprint == "" {
		common.RespondError(w, fmt.Errorf("%w: fingerprint is required", common.ErrBadRequest))
		return
	}

	profile, err := h.svc.SaveProfile(r.Context(), userID, req.Fingerprint, req.BankName, req.SkipRows, req.Mapping.toService())
	if err != nil {
		common.RespondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, toProfileResponse(profile))
}

// ListProfiles handles GET /api/v1/import/profiles.
func (h *ImportHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	profiles, err := h.svc.ListProfiles(r.Context(), userID)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	out := make([]*profileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileResponse(p))
	}
	common.RespondJSON(w, http.StatusOK, out)
}

type importResponse struct {
	JobID         uuid.UUID `json:"job_id"`
	RowsTotal     int       `json:"rows_total"`
	RowsImported  int       `json:"rows_imported"`
	RowsSkipped   int       `json:"rows_skipped"`
	RowsDuplicate int       `json:"rows_duplicate"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// Run handles POST /api/v1/import/run: multipart upload with "file",
// "mapping" (JSON), and optional "account_id" and "skip_rows" parts.
func (h *ImportHandler) Run(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	fileName, data, err := readUpload(r)
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
		return
	}

	var mapping mappingPayload
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			common.RespondError(w, fmt.Errorf("%w: invalid mapping JSON", common.ErrBadRequest))
			return
		}
	} else {
		common.RespondError(w, fmt.Errorf("%w: mapping is required", common.ErrBadRequest))
		return
	}

	var accountID *uuid.UUID
	if raw := r.FormValue("account_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.RespondError(w, fmt.Errorf("%w: invalid account_id", common.ErrBadRequest))
			return
		}
		accountID = &parsed
	}

	skipRows := 0
	if raw := r.FormValue("skip_rows"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &skipRows); err != nil || skipRows < 0 {
			common.RespondError(w, fmt.Errorf("%w: invalid skip_rows", common.ErrBadRequest))
			return
		}
	}

	result, err := h.svc.Import(r.Context(), userID, accountID, fileName, data, skipRows, mapping.toService())
	if errors.Is(err, service.ErrMappingRejected) || errors.Is(err, service.ErrInvalidMapping) {
		common.RespondError(w, fmt.Errorf("%w: %v", common.ErrBadRequest, err))
		return
	}
	if err != nil {
		common.RespondError(w, err)
		return
	}

	observability.ImportRowsTotal.WithLabelValues("imported").Add(float64(result.RowsImported))
	observability.ImportRowsTotal.WithLabelValues("skipped").Add(float64(result.RowsSkipped))
	observability.ImportRowsTotal.WithLabelValues("duplicate").Add(float64(result.RowsDuplicate))

	common.RespondJSON(w, http.StatusOK, importResponse{
		JobID:         result.JobID,
		RowsTotal:     result.RowsTotal,
		RowsImported:  result.RowsImported,
		RowsSkipped:   result.RowsSkipped,
		RowsDuplicate: result.RowsDuplicate,
		Warnings:      result.Warnings,
	})
}

type jobResponse struct {
	ID            uuid.UUID  `json:"id"`
	FileName      string     `json:"file_name"`
	Status        string     `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	RowsTotal     int        `json:"rows_total"`
	RowsImported  int        `json:"rows_imported"`
	RowsSkipped   int        `json:"rows_skipped"`
	RowsDuplicate int        `json:"rows_duplicate"`
	RequestedAt   time.Time  `json:"requested_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// GetJob handles GET /api/v1/import/jobs/{id}.
func (h *ImportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid job id", common.ErrBadRequest))
		return
	}

	job, err := h.svc.GetJob(r.Context(), jobID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if job == nil {
		common.RespondError(w, fmt.Errorf("%w: import job", common.ErrNotFound))
		return
	}

	resp := jobResponse{
		ID:            job.ID,
		FileName:      job.FileName,
		Status:        job.Status,
		RowsTotal:     job.RowsTotal,
		RowsImported:  job.RowsImported,
		RowsSkipped:   job.RowsSkipped,
		RowsDuplicate: job.RowsDuplicate,
		RequestedAt:   job.RequestedAt,
		FinishedAt:    job.FinishedAt,
	}
	if job.ErrorMessage != nil {
		resp.ErrorMessage = *job.ErrorMessage
	}
	common.RespondJSON(w, http.StatusOK, resp)
}

// readUpload extracts the "file" part from a multipart request.
func readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("multipart form expected: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("file part is required: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %v", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("uploaded file is empty")
	}
	return header.Filename, data, nil
}
