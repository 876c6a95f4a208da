package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inmofin/inmofin/internal/domain/inbox"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresInboxRepository implements InboxRepository using PostgreSQL
type PostgresInboxRepository struct {
	pgpool PgxPool
}

// NewPostgresInboxRepository creates a new PostgreSQL-backed inbox repository
func NewPostgresInboxRepository(pgpool PgxPool) *PostgresInboxRepository {
	return &PostgresInboxRepository{pgpool: pgpool}
}

const createItemQuery = `
	INSERT INTO inbox_items (
		id, user_id, file_name, mime_type, ocr_status, extracted,
		scope, property_id, account_id, routing_state, audit_log
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// CreateItem inserts a new inbox item
func (r *PostgresInboxRepository) CreateItem(ctx context.Context, item *inbox.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	extracted, auditLog, err := marshalItemJSON(item)
	if err != nil {
		return err
	}

	_, err = r.pgpool.Exec(ctx, createItemQuery,
		item.ID, item.UserID, item.FileName, item.MimeType, item.OCRStatus,
		extracted, nullable(string(item.Scope)), item.PropertyID, item.AccountID,
		nullable(string(item.RoutingState)), auditLog,
	)
	if err != nil {
		return fmt.Errorf("failed to create inbox item: %w", err)
	}

	return nil
}

const getItemQuery = `
	SELECT id, user_id, file_name, mime_type, ocr_status, extracted,
	       scope, property_id, account_id, routing_state, audit_log,
	       created_at, updated_at
	FROM inbox_items WHERE id = $1
`

// GetItemByID retrieves an inbox item by ID
func (r *PostgresInboxRepository) GetItemByID(ctx context.Context, id uuid.UUID) (*inbox.Item, error) {
	item, err := scanItem(r.pgpool.QueryRow(ctx, getItemQuery, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inbox item: %w", err)
	}
	return item, nil
}

const updateItemQuery = `
	UPDATE inbox_items SET
		ocr_status = $2, extracted = $3, scope = $4, property_id = $5,
		account_id = $6, routing_state = $7, audit_log = $8, updated_at = NOW()
	WHERE id = $1
`

// UpdateItem persists the mutable fields of an inbox item
func (r *PostgresInboxRepository) UpdateItem(ctx context.Context, item *inbox.Item) error {
	extracted, auditLog, err := marshalItemJSON(item)
	if err != nil {
		return err
	}

	_, err = r.pgpool.Exec(ctx, updateItemQuery,
		item.ID, item.OCRStatus, extracted, nullable(string(item.Scope)),
		item.PropertyID, item.AccountID, nullable(string(item.RoutingState)), auditLog,
	)
	if err != nil {
		return fmt.Errorf("failed to update inbox item: %w", err)
	}

	return nil
}

const listItemsQuery = `
	SELECT id, user_id, file_name, mime_type, ocr_status, extracted,
	       scope, property_id, account_id, routing_state, audit_log,
	       created_at, updated_at
	FROM inbox_items
	WHERE user_id = $1 AND ($2::text IS NULL OR ocr_status = $2)
	ORDER BY created_at DESC
`

// ListItems returns a user's inbox items, optionally filtered by OCR status
func (r *PostgresInboxRepository) ListItems(ctx context.Context, userID uuid.UUID, status *inbox.OCRStatus) ([]*inbox.Item, error) {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.pgpool.Query(ctx, listItemsQuery, userID, statusArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox items: %w", err)
	}
	defer rows.Close()

	var items []*inbox.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbox item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

func marshalItemJSON(item *inbox.Item) ([]byte, []byte, error) {
	extracted, err := json.Marshal(item.Extracted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal extracted fields: %w", err)
	}
	auditLog, err := json.Marshal(item.AuditLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal audit log: %w", err)
	}
	return extracted, auditLog, nil
}

func scanItem(row pgx.Row) (*inbox.Item, error) {
	var item inbox.Item
	var extracted, auditLog []byte
	var scope, routingState *string

	err := row.Scan(
		&item.ID, &item.UserID, &item.FileName, &item.MimeType, &item.OCRStatus,
		&extracted, &scope, &item.PropertyID, &item.AccountID, &routingState,
		&auditLog, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &item.Extracted); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted fields: %w", err)
		}
	}
	if len(auditLog) > 0 {
		if err := json.Unmarshal(auditLog, &item.AuditLog); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit log: %w", err)
		}
	}
	if scope != nil {
		item.Scope = inbox.Scope(*scope)
	}
	if routingState != nil {
		item.RoutingState = inbox.RoutingState(*routingState)
	}

	return &item, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
