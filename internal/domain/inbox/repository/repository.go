// Package repository provides data access for inbox documents.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/inmofin/inmofin/internal/domain/inbox"
)

// InboxRepository defines data access operations for inbox items.
type InboxRepository interface {
	CreateItem(ctx context.Context, item *inbox.Item) error
	GetItemByID(ctx context.Context, id uuid.UUID) (*inbox.Item, error)
	UpdateItem(ctx context.Context, item *inbox.Item) error
	ListItems(ctx context.Context, userID uuid.UUID, status *inbox.OCRStatus) ([]*inbox.Item, error)
}
