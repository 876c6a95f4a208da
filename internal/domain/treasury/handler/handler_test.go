package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/treasury/repository"
	"github.com/inmofin/inmofin/internal/domain/treasury/validate"
	"github.com/inmofin/inmofin/pkg/middleware"
)

type memoryTreasuryRepo struct {
	records []*repository.StoredRecord
}

func (m *memoryTreasuryRepo) CreateRecord(_ context.Context, userID uuid.UUID, record validate.Record, sourceItem *uuid.UUID) (*repository.StoredRecord, error) {
	stored := &repository.StoredRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        record.Kind,
		Concept:     record.Concept,
		Date:        record.Date,
		AmountCents: record.AmountCents,
		BaseCents:   record.BaseCents,
		TaxCents:    record.TaxCents,
		Category:    record.Category,
		PropertyID:  record.PropertyID,
		AccountID:   record.AccountID,
		SourceItem:  sourceItem,
		CreatedAt:   time.Now(),
	}
	m.records = append(m.records, stored)
	return stored, nil
}

func (m *memoryTreasuryRepo) ListRecords(_ context.Context, userID uuid.UUID, kind *validate.RecordKind) ([]*repository.StoredRecord, error) {
	var out []*repository.StoredRecord
	for _, s := range m.records {
		if s.UserID != userID {
			continue
		}
		if kind != nil && s.Kind != *kind {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func testHandler() (*TreasuryHandler, *memoryTreasuryRepo) {
	repo := &memoryTreasuryRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTreasuryHandler(repo, logger), repo
}

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), userID))
}

func TestValidateBatchMixedResults(t *testing.T) {
	h, _ := testHandler()

	payload := `{"records":[
		{"kind":"gasto","concept":"Fontanería","date":"2025-03-15T00:00:00Z","amount_cents":12100,"base_cents":10000,"tax_cents":2100,"origin":"property","property_id":"` + uuid.NewString() + `"},
		{"kind":"gasto","concept":"","date":"2025-03-15T00:00:00Z","amount_cents":0,"origin":"property"}
	]}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/treasury/validate", bytes.NewBufferString(payload)), uuid.New())

	rec := httptest.NewRecorder()
	h.ValidateBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary validate.BatchSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.Total != 2 || summary.Valid != 1 || summary.Invalid != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestValidateBatchEmptyIsBadRequest(t *testing.T) {
	h, _ := testHandler()

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/treasury/validate", bytes.NewBufferString(`{"records":[]}`)), uuid.New())
	rec := httptest.NewRecorder()
	h.ValidateBatch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateRecordPersistsValid(t *testing.T) {
	h, repo := testHandler()
	userID := uuid.New()

	payload := `{"kind":"ingreso","concept":"Alquiler marzo","date":"2025-03-01T00:00:00Z","amount_cents":95000,"origin":"property","property_id":"` + uuid.NewString() + `"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/treasury/records", bytes.NewBufferString(payload)), userID)

	rec := httptest.NewRecorder()
	h.CreateRecord(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(repo.records))
	}
	if repo.records[0].Kind != validate.KindIngreso {
		t.Errorf("kind = %s", repo.records[0].Kind)
	}
}

func TestCreateRecordRejectsInvalid(t *testing.T) {
	h, repo := testHandler()

	payload := `{"kind":"gasto","concept":"","date":"2025-03-01T00:00:00Z","amount_cents":0,"origin":"property"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/treasury/records", bytes.NewBufferString(payload)), uuid.New())

	rec := httptest.NewRecorder()
	h.CreateRecord(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if len(repo.records) != 0 {
		t.Errorf("invalid record should not persist, got %d", len(repo.records))
	}
}

func TestListRecordsFiltersByKind(t *testing.T) {
	h, repo := testHandler()
	userID := uuid.New()
	propertyID := uuid.New()

	_, _ = repo.CreateRecord(context.Background(), userID, validate.Record{
		Kind: validate.KindIngreso, Concept: "Alquiler", Date: time.Now(), AmountCents: 95000,
		Origin: validate.OriginProperty, PropertyID: &propertyID,
	}, nil)
	_, _ = repo.CreateRecord(context.Background(), userID, validate.Record{
		Kind: validate.KindGasto, Concept: "Comunidad", Date: time.Now(), AmountCents: 6000,
		Origin: validate.OriginProperty, PropertyID: &propertyID,
	}, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/treasury/records?kind=ingreso", nil), userID)
	rec := httptest.NewRecorder()
	h.ListRecords(rec, req)

	var out []recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	if len(out) != 1 || out[0].Kind != validate.KindIngreso {
		t.Errorf("records = %+v", out)
	}
}
