// Package inbox implements the document staging area: uploaded files move
// through OCR extraction and classification before being routed into
// treasury, fiscal, or archive destinations.
package inbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OCRStatus is the processing state of an inbox document.
type OCRStatus string

const (
	StatusPending        OCRStatus = "PENDING"
	StatusProcessing     OCRStatus = "PROCESSING"
	StatusOK             OCRStatus = "OK"
	StatusRequiresReview OCRStatus = "REQUIRES_REVIEW"
	StatusError          OCRStatus = "ERROR"
)

// ErrInvalidTransition is returned for OCR status moves the state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid OCR status transition")

// allowedTransitions encodes the OCR lifecycle:
// PENDING -> PROCESSING -> (OK | REQUIRES_REVIEW | ERROR).
// REQUIRES_REVIEW can go back to PROCESSING after manual correction;
// OK and ERROR are terminal.
var allowedTransitions = map[OCRStatus][]OCRStatus{
	StatusPending:        {StatusProcessing},
	StatusProcessing:     {StatusOK, StatusRequiresReview, StatusError},
	StatusRequiresReview: {StatusProcessing},
}

// CanTransition reports whether moving from one OCR status to another is allowed.
func CanTransition(from, to OCRStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DocumentKind is the recognized type of an inbox document.
type DocumentKind string

const (
	KindInvoice       DocumentKind = "invoice"
	KindContract      DocumentKind = "contract"
	KindBankStatement DocumentKind = "bank_statement"
	KindOther         DocumentKind = "other"
)

// Scope is where a routed document is filed.
type Scope string

const (
	ScopeProperty Scope = "PROPERTY"
	ScopePersonal Scope = "PERSONAL"
)

// RoutingState is the terminal filing state of an inbox item.
type RoutingState string

const (
	RoutingSaved  RoutingState = "SAVED"
	RoutingReview RoutingState = "REVIEW"
	RoutingError  RoutingState = "ERROR"
)

// Extracted holds the OCR-extracted fields relevant to routing. Cents
// fields are zero and pointers nil when the processor found nothing.
type Extracted struct {
	Kind        DocumentKind `json:"kind"`
	Provider    string       `json:"provider,omitempty"`
	IssueDate   *time.Time   `json:"issue_date,omitempty"`
	AmountCents int64        `json:"amount_cents,omitempty"`
	BaseCents   int64        `json:"base_cents,omitempty"`
	TaxCents    int64        `json:"tax_cents,omitempty"`
	AccountIBAN string       `json:"account_iban,omitempty"`
	RawText     string       `json:"raw_text,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
}

// AuditEntry records one step of an inbox item's lifecycle.
type AuditEntry struct {
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Message string    `json:"message,omitempty"`
}

// Item is one uploaded document awaiting (or past) classification.
type Item struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	FileName     string       `json:"file_name"`
	MimeType     string       `json:"mime_type"`
	OCRStatus    OCRStatus    `json:"ocr_status"`
	Extracted    Extracted    `json:"extracted"`
	Scope        Scope        `json:"scope,omitempty"`
	PropertyID   *uuid.UUID   `json:"property_id,omitempty"`
	AccountID    *uuid.UUID   `json:"account_id,omitempty"`
	RoutingState RoutingState `json:"routing_state,omitempty"`
	AuditLog     []AuditEntry `json:"audit_log,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// SetOCRStatus applies a state-machine transition, rejecting moves the
// lifecycle does not allow.
func (it *Item) SetOCRStatus(to OCRStatus) error {
	if !CanTransition(it.OCRStatus, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.OCRStatus, to)
	}
	it.OCRStatus = to
	return nil
}

// Audit appends an audit log entry.
func (it *Item) Audit(action, message string) {
	it.AuditLog = append(it.AuditLog, AuditEntry{
		At:      time.Now().UTC(),
		Action:  action,
		Message: message,
	})
}
