// Package service orchestrates the inbox lifecycle: upload, OCR
// extraction, classification, and routing into treasury/fiscal records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/importer/normalizer"
	"github.com/inmofin/inmofin/internal/domain/inbox"
	"github.com/inmofin/inmofin/internal/domain/inbox/ocr"
	inboxrepo "github.com/inmofin/inmofin/internal/domain/inbox/repository"
	treasuryrepo "github.com/inmofin/inmofin/internal/domain/treasury/repository"
	"github.com/inmofin/inmofin/internal/domain/treasury/validate"
)

var (
	ErrItemNotFound = errors.New("inbox item not found")
	ErrNotRoutable  = errors.New("item is not ready for routing")
)

// reviewConfidence is the floor below which extraction goes to manual review.
const reviewConfidence = 0.6

// Processor extracts structured fields from a document.
type Processor interface {
	Process(ctx context.Context, content []byte, mimeType string) (*ocr.Result, error)
}

// InboxService drives inbox items through their lifecycle.
type InboxService struct {
	repo      inboxrepo.InboxRepository
	treasury  treasuryrepo.TreasuryRepository
	processor Processor
	logger    *slog.Logger
}

// NewInboxService creates a new inbox service
func NewInboxService(repo inboxrepo.InboxRepository, treasury treasuryrepo.TreasuryRepository, processor Processor, logger *slog.Logger) *InboxService {
	return &InboxService{
		repo:      repo,
		treasury:  treasury,
		processor: processor,
		logger:    logger,
	}
}

// Upload creates an inbox item and runs OCR extraction over the uploaded
// content. The OCR call is fire-and-wait; on upstream failure the item is
// left in ERROR with the failure in its audit log and the input data
// untouched.
func (s *InboxService) Upload(ctx context.Context, userID uuid.UUID, fileName, mimeType string, content []byte) (*inbox.Item, error) {
	item := &inbox.Item{
		ID:        uuid.New(),
		UserID:    userID,
		FileName:  fileName,
		MimeType:  mimeType,
		OCRStatus: inbox.StatusPending,
	}
	item.Audit("upload", fileName)

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create inbox item: %w", err)
	}

	if err := item.SetOCRStatus(inbox.StatusProcessing); err != nil {
		return nil, err
	}

	result, err := s.processor.Process(ctx, content, mimeType)
	if err != nil {
		s.logger.Error("OCR processing failed", "item_id", item.ID, "error", err)
		_ = item.SetOCRStatus(inbox.StatusError)
		item.Audit("ocr_failed", err.Error())
		if updateErr := s.repo.UpdateItem(ctx, item); updateErr != nil {
			return nil, updateErr
		}
		return item, nil
	}

	item.Extracted = mapExtraction(result)

	next := inbox.StatusOK
	if result.Confidence < reviewConfidence || item.Extracted.Kind == inbox.KindOther {
		next = inbox.StatusRequiresReview
	}
	if err := item.SetOCRStatus(next); err != nil {
		return nil, err
	}
	item.Audit("ocr_done", fmt.Sprintf("kind=%s confidence=%.2f", item.Extracted.Kind, result.Confidence))

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update inbox item: %w", err)
	}

	return item, nil
}

// Correct applies manual field corrections to an item in review and moves
// it back through processing to OK.
func (s *InboxService) Correct(ctx context.Context, itemID uuid.UUID, extracted inbox.Extracted) (*inbox.Item, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	if err := item.SetOCRStatus(inbox.StatusProcessing); err != nil {
		return nil, err
	}
	item.Extracted = extracted
	if err := item.SetOCRStatus(inbox.StatusOK); err != nil {
		return nil, err
	}
	item.Audit("corrected", "manual field correction")

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update inbox item: %w", err)
	}
	return item, nil
}

// Route files an item under the user's assignment, validating and
// persisting the fiscal/treasury side effects the router emits. Records
// that fail validation leave the item in REVIEW rather than half-saving.
func (s *InboxService) Route(ctx context.Context, userID, itemID uuid.UUID, assignment inbox.Assignment) (*inbox.RoutingResult, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.OCRStatus != inbox.StatusOK {
		return nil, fmt.Errorf("%w: OCR status is %s", ErrNotRoutable, item.OCRStatus)
	}

	result := inbox.Route(item, assignment)

	if !result.Success {
		item.RoutingState = inbox.RoutingReview
		item.Audit("routing_refused", result.Message)
		if err := s.repo.UpdateItem(ctx, item); err != nil {
			return nil, err
		}
		return &result, nil
	}

	for _, entry := range []*validate.Record{result.FiscalEntry, result.TreasuryEntry} {
		if entry == nil {
			continue
		}
		var res validate.Result
		switch entry.Kind {
		case validate.KindIngreso:
			res = validate.ValidateIngreso(*entry)
		case validate.KindCAPEX:
			res = validate.ValidateCAPEX(*entry)
		default:
			res = validate.ValidateGasto(*entry)
		}
		if !res.IsValid {
			item.RoutingState = inbox.RoutingReview
			item.Audit("routing_invalid", strings.Join(res.Errors, "; "))
			if err := s.repo.UpdateItem(ctx, item); err != nil {
				return nil, err
			}
			refused := inbox.RoutingResult{
				Message:  "los apuntes generados no superan la validación",
				Warnings: res.Errors,
			}
			return &refused, nil
		}
		result.Warnings = append(result.Warnings, res.Warnings...)

		if _, err := s.treasury.CreateRecord(ctx, userID, *entry, &item.ID); err != nil {
			return nil, fmt.Errorf("failed to persist routed record: %w", err)
		}
	}

	item.Scope = result.Destination.Scope
	item.PropertyID = assignment.PropertyID
	item.AccountID = assignment.AccountID
	item.RoutingState = inbox.RoutingSaved
	item.Audit("routed", result.Message)

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update inbox item: %w", err)
	}

	return &result, nil
}

// Get returns a single inbox item.
func (s *InboxService) Get(ctx context.Context, itemID uuid.UUID) (*inbox.Item, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// List returns a user's inbox, optionally filtered by OCR status.
func (s *InboxService) List(ctx context.Context, userID uuid.UUID, status *inbox.OCRStatus) ([]*inbox.Item, error) {
	return s.repo.ListItems(ctx, userID, status)
}

// mapExtraction converts processor entities into routing fields. Amounts
// arrive in Spanish locale; dates in dd/mm/yyyy or ISO.
func mapExtraction(result *ocr.Result) inbox.Extracted {
	ex := inbox.Extracted{
		Kind:       inbox.KindOther,
		RawText:    result.RawText,
		Confidence: result.Confidence,
	}

	for _, e := range result.Entities {
		switch e.Type {
		case "document_type":
			ex.Kind = kindFromValue(e.Value)
		case "total_amount":
			if cents, err := normalizer.ParseAmount(e.Value, true); err == nil {
				ex.AmountCents = abs(cents)
			}
		case "net_amount", "base_amount":
			if cents, err := normalizer.ParseAmount(e.Value, true); err == nil {
				ex.BaseCents = abs(cents)
			}
		case "tax_amount", "vat_amount":
			if cents, err := normalizer.ParseAmount(e.Value, true); err == nil {
				ex.TaxCents = abs(cents)
			}
		case "supplier_name", "provider":
			ex.Provider = normalizer.CleanDescription(e.Value)
		case "invoice_date", "issue_date":
			if t, err := normalizer.ParseDate(e.Value, "", nil); err == nil {
				ex.IssueDate = &t
			}
		case "iban", "account_iban":
			ex.AccountIBAN = strings.ReplaceAll(e.Value, " ", "")
		}
	}

	if ex.Kind == inbox.KindOther {
		ex.Kind = inferKind(result.RawText)
	}

	return ex
}

func kindFromValue(v string) inbox.DocumentKind {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "invoice", "factura", "receipt", "recibo":
		return inbox.KindInvoice
	case "contract", "contrato":
		return inbox.KindContract
	case "bank_statement", "extracto", "extracto bancario":
		return inbox.KindBankStatement
	default:
		return inbox.KindOther
	}
}

// inferKind is a fallback over the raw text when the processor did not
// label the document type.
func inferKind(rawText string) inbox.DocumentKind {
	lower := strings.ToLower(rawText)
	switch {
	case strings.Contains(lower, "factura"):
		return inbox.KindInvoice
	case strings.Contains(lower, "contrato"):
		return inbox.KindContract
	case strings.Contains(lower, "extracto"):
		return inbox.KindBankStatement
	default:
		return inbox.KindOther
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
