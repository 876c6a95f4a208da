// Package repository provides data access for import-related entities.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BankProfile is a learned statement layout: a saved mapping from a
// spreadsheet fingerprint to semantic columns. Created the first time an
// unrecognized layout is manually mapped; persisted indefinitely.
type BankProfile struct {
	ID               uuid.UUID  `db:"id"`
	UserID           *uuid.UUID `db:"user_id"` // NULL = global template
	Fingerprint      string     `db:"fingerprint"`
	BankName         *string    `db:"bank_name"`
	SkipRows         int        `db:"skip_rows"`
	DateFormat       string     `db:"date_format"`
	DateCol          int        `db:"date_col"`
	DescCol          int        `db:"desc_col"`
	AmountCol        *int       `db:"amount_col"`
	DebitCol         *int       `db:"debit_col"`
	CreditCol        *int       `db:"credit_col"`
	IsEuropeanFormat bool       `db:"is_european_format"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// ImportJob tracks the status of a statement import.
type ImportJob struct {
	ID            uuid.UUID  `db:"id"`
	UserID        uuid.UUID  `db:"user_id"`
	AccountID     *uuid.UUID `db:"account_id"`
	FileName      string     `db:"file_name"`
	Status        string     `db:"status"` // "pending", "running", "succeeded", "failed"
	ErrorMessage  *string    `db:"error_message"`
	RowsTotal     int        `db:"rows_total"`
	RowsImported  int        `db:"rows_imported"`
	RowsSkipped   int        `db:"rows_skipped"`
	RowsDuplicate int        `db:"rows_duplicate"`
	RequestedAt   time.Time  `db:"requested_at"`
	FinishedAt    *time.Time `db:"finished_at"`
}

// StoredMovement is a movement row ready for persistence.
type StoredMovement struct {
	Date          time.Time
	Description   string
	AmountCents   int64
	DuplicateHash string
	OriginalRow   int
}

// ImportRepository defines data access operations for statement imports.
type ImportRepository interface {
	// Bank profiles
	GetProfileByFingerprint(ctx context.Context, fingerprint string, userID *uuid.UUID) (*BankProfile, error)
	CreateProfile(ctx context.Context, profile *BankProfile) error
	UpdateProfile(ctx context.Context, profile *BankProfile) error
	ListProfiles(ctx context.Context, userID uuid.UUID) ([]*BankProfile, error)

	// Import jobs
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsSkipped, rowsDuplicate int, errorMessage *string) error

	// Movements
	BulkInsertMovements(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, jobID uuid.UUID, movements []*StoredMovement) (int, error)
	ExistingHashes(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, hashes []string) (map[string]bool, error)
}
