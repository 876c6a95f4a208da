// Package handler exposes the document inbox over JSON HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/common"
	"github.com/inmofin/inmofin/internal/domain/inbox"
	"github.com/inmofin/inmofin/internal/domain/inbox/service"
	"github.com/inmofin/inmofin/pkg/middleware"
	"github.com/inmofin/inmofin/pkg/observability"
)

// maxDocumentBytes caps document uploads at 20 MiB (scanned PDFs).
const maxDocumentBytes = 20 << 20

// InboxHandler serves the /api/v1/inbox endpoints.
type InboxHandler struct {
	svc    *service.InboxService
	logger *slog.Logger
}

// NewInboxHandler constructs a new handler.
func NewInboxHandler(svc *service.InboxService, logger *slog.Logger) *InboxHandler {
	return &InboxHandler{svc: svc, logger: logger}
}

// Upload handles POST /api/v1/inbox: multipart upload with a "file" part.
func (h *InboxHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		common.RespondError(w, fmt.Errorf("%w: multipart form expected", common.ErrBadRequest))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: file part is required", common.ErrBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes))
	if err != nil || len(data) == 0 {
		common.RespondError(w, fmt.Errorf("%w: uploaded file is empty", common.ErrBadRequest))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	item, err := h.svc.Upload(r.Context(), userID, header.Filename, mimeType, data)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	observability.InboxDocumentsTotal.WithLabelValues(string(item.OCRStatus)).Inc()
	common.RespondJSON(w, http.StatusCreated, item)
}

// List handles GET /api/v1/inbox with an optional ?status= filter.
func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	var status *inbox.OCRStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := inbox.OCRStatus(raw)
		status = &s
	}

	items, err := h.svc.List(r.Context(), userID, status)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if items == nil {
		items = []*inbox.Item{}
	}
	common.RespondJSON(w, http.StatusOK, items)
}

// Get handles GET /api/v1/inbox/{id}.
func (h *InboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid item id", common.ErrBadRequest))
		return
	}

	item, err := h.svc.Get(r.Context(), itemID)
	if errors.Is(err, service.ErrItemNotFound) {
		common.RespondError(w, fmt.Errorf("%w: inbox item", common.ErrNotFound))
		return
	}
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, item)
}

// Correct handles POST /api/v1/inbox/{id}/correct with an Extracted body.
func (h *InboxHandler) Correct(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid item id", common.ErrBadRequest))
		return
	}

	var extracted inbox.Extracted
	if err := json.NewDecoder(r.Body).Decode(&extracted); err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest))
		return
	}

	item, err := h.svc.Correct(r.Context(), itemID, extracted)
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		common.RespondError(w, fmt.Errorf("%w: inbox item", common.ErrNotFound))
		return
	case errors.Is(err, inbox.ErrInvalidTransition):
		common.RespondError(w, fmt.Errorf("%w: %v", common.ErrConflict, err))
		return
	case err != nil:
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, item)
}

type routeRequest struct {
	PropertyID *uuid.UUID `json:"property_id,omitempty"`
	AccountID  *uuid.UUID `json:"account_id,omitempty"`
	IsPersonal bool       `json:"is_personal,omitempty"`
}

// Route handles POST /api/v1/inbox/{id}/route with an assignment body.
func (h *InboxHandler) Route(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		common.RespondError(w, common.ErrUnauthenticated)
		return
	}

	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid item id", common.ErrBadRequest))
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, fmt.Errorf("%w: invalid JSON body", common.ErrBadRequest))
		return
	}

	result, err := h.svc.Route(r.Context(), userID, itemID, inbox.Assignment{
		PropertyID: req.PropertyID,
		AccountID:  req.AccountID,
		IsPersonal: req.IsPersonal,
	})
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		common.RespondError(w, fmt.Errorf("%w: inbox item", common.ErrNotFound))
		return
	case errors.Is(err, service.ErrNotRoutable):
		common.RespondError(w, fmt.Errorf("%w: %v", common.ErrConflict, err))
		return
	case err != nil:
		common.RespondError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	common.RespondJSON(w, status, result)
}
