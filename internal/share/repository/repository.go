package repository

import (
	"context"
	"errors"
	"time"

	"docshare/internal/share/domain"
)

// ErrDuplicateActiveGrant is returned by Create when an active grant already
// exists for the same (document, grantor, grantee) triple. The store enforces
// this with a partial unique index, so concurrent creates cannot both win.
var ErrDuplicateActiveGrant = errors.New("an active grant already exists for this document and grantee")

// Repository defines persistence for share grants. Getters return (nil, nil)
// for missing rows; errors mean database failures.
type Repository interface {
	// Create persists the grant. The grant must have ID set. Returns
	// ErrDuplicateActiveGrant when the active-triple constraint is violated.
	Create(ctx context.Context, g *domain.Grant) error
	GetByID(ctx context.Context, id string) (*domain.Grant, error)
	// FindActive returns the active grant for the triple, expired or not.
	FindActive(ctx context.Context, documentID, grantorID, granteeID string) (*domain.Grant, error)
	ListByGrantor(ctx context.Context, grantorID string) ([]*domain.Grant, error)
	ListByGrantee(ctx context.Context, granteeID string) ([]*domain.Grant, error)
	// Deactivate flips the grant inactive. Already-inactive grants are a no-op.
	Deactivate(ctx context.Context, id string, now time.Time) error
	// RecordAccess atomically increments the access counter and stamps the
	// access time, returning the updated grant.
	RecordAccess(ctx context.Context, id string, now time.Time) (*domain.Grant, error)
	// SweepExpired flips every active grant past its expiry to inactive and
	// returns how many rows changed.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
