package repository

import (
	"context"
	"errors"
	"time"

	"docshare/internal/user/domain"
)

// Create maps the store's unique constraints to these errors so concurrent
// registrations with the same credential cannot both win.
var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateNationalID = errors.New("national id already registered")
)

// Repository defines persistence for users. Getters return (nil, nil) for
// missing rows; errors mean database failures. Every mutation is a single
// statement so a timed-out call leaves the row unchanged.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByNationalID(ctx context.Context, nationalID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error

	// SetOTPChallenge overwrites the user's OTP digest and expiry atomically.
	SetOTPChallenge(ctx context.Context, userID, digest string, expiresAt time.Time) error
	// MarkVerified flips the verified flag and clears the OTP challenge in one
	// statement. A no-op for already-verified users.
	MarkVerified(ctx context.Context, userID string) error

	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdateProfile(ctx context.Context, userID, name, phone string, address domain.Address) error
	SetProfilePicture(ctx context.Context, userID, key string) error
	// AdjustDocumentsCount atomically adds delta to the denormalized count.
	AdjustDocumentsCount(ctx context.Context, userID string, delta int) error
}
