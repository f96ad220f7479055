package repository

import (
	"context"

	"docshare/internal/document/domain"
)

// ListFilter narrows an owner's document listing.
type ListFilter struct {
	Category string
	Type     string
	Search   string // matches title or description, case-insensitive
	Page     int    // 1-based
	Limit    int
}

// Repository defines persistence for document metadata. Getters return
// (nil, nil) for missing rows; errors mean database failures.
type Repository interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// FindOwned returns the document only when it exists and belongs to ownerID.
	FindOwned(ctx context.Context, id, ownerID string) (*domain.Document, error)
	List(ctx context.Context, ownerID string, f ListFilter) (docs []*domain.Document, total int, err error)
	UpdateMetadata(ctx context.Context, id, ownerID string, title, description string, category domain.Category, docType domain.DocType, tags []string) error
	Delete(ctx context.Context, id, ownerID string) error
	// AppendShareRef adds one entry to the advisory shared-party list and sets
	// the shared flag. Cache only; grants remain authoritative.
	AppendShareRef(ctx context.Context, docID string, ref domain.ShareRef) error
}
