// Package repository provides data access for treasury records (ingresos,
// gastos, CAPEX) created manually or emitted by inbox routing.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inmofin/inmofin/internal/domain/treasury/validate"
)

// StoredRecord is a persisted treasury record.
type StoredRecord struct {
	ID          uuid.UUID           `db:"id"`
	UserID      uuid.UUID           `db:"user_id"`
	Kind        validate.RecordKind `db:"kind"`
	Concept     string              `db:"concept"`
	Date        time.Time           `db:"posted_at"`
	AmountCents int64               `db:"amount_cents"`
	BaseCents   int64               `db:"base_cents"`
	TaxCents    int64               `db:"tax_cents"`
	Category    string              `db:"category"`
	PropertyID  *uuid.UUID          `db:"property_id"`
	AccountID   *uuid.UUID          `db:"account_id"`
	SourceItem  *uuid.UUID          `db:"source_item_id"`
	CreatedAt   time.Time           `db:"created_at"`
}

// TreasuryRepository defines data access for treasury records.
type TreasuryRepository interface {
	CreateRecord(ctx context.Context, userID uuid.UUID, record validate.Record, sourceItem *uuid.UUID) (*StoredRecord, error)
	ListRecords(ctx context.Context, userID uuid.UUID, kind *validate.RecordKind) ([]*StoredRecord, error)
}

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresTreasuryRepository implements TreasuryRepository using PostgreSQL
type PostgresTreasuryRepository struct {
	pgpool PgxPool
}

// NewPostgresTreasuryRepository creates a new PostgreSQL-backed treasury repository
func NewPostgresTreasuryRepository(pgpool PgxPool) *PostgresTreasuryRepository {
	return &PostgresTreasuryRepository{pgpool: pgpool}
}

const createRecordQuery = `
	INSERT INTO treasury_records (
		id, user_id, kind, concept, posted_at, amount_cents, base_cents,
		tax_cents, category, property_id, account_id, source_item_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING created_at
`

// CreateRecord persists a validated treasury record.
func (r *PostgresTreasuryRepository) CreateRecord(ctx context.Context, userID uuid.UUID, record validate.Record, sourceItem *uuid.UUID) (*StoredRecord, error) {
	stored := &StoredRecord{
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
	}

	err := r.pgpool.QueryRow(ctx, createRecordQuery,
		stored.ID, stored.UserID, stored.Kind, stored.Concept, stored.Date,
		stored.AmountCents, stored.BaseCents, stored.TaxCents, stored.Category,
		stored.PropertyID, stored.AccountID, stored.SourceItem,
	).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create treasury record: %w", err)
	}

	return stored, nil
}

const listRecordsQuery = `
	SELECT id, user_id, kind, concept, posted_at, amount_cents, base_cents,
	       tax_cents, category, property_id, account_id, source_item_id, created_at
	FROM treasury_records
	WHERE user_id = $1 AND ($2::text IS NULL OR kind = $2)
	ORDER BY posted_at DESC, created_at DESC
`

// ListRecords returns a user's treasury records, optionally filtered by kind.
func (r *PostgresTreasuryRepository) ListRecords(ctx context.Context, userID uuid.UUID, kind *validate.RecordKind) ([]*StoredRecord, error) {
	var kindArg *string
	if kind != nil {
		k := string(*kind)
		kindArg = &k
	}

	rows, err := r.pgpool.Query(ctx, listRecordsQuery, userID, kindArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list treasury records: %w", err)
	}
	defer rows.Close()

	var records []*StoredRecord
	for rows.Next() {
		var rec StoredRecord
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Kind, &rec.Concept, &rec.Date,
			&rec.AmountCents, &rec.BaseCents, &rec.TaxCents, &rec.Category,
			&rec.PropertyID, &rec.AccountID, &rec.SourceItem, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan treasury record: %w", err)
		}
		records = append(records, &rec)
	}

	return records, nil
}
