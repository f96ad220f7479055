// Package service implements the sharing engine: grant creation with
// uniqueness and self-share rules, revocation, permission-checked access
// with usage counting, and the listing projections.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"docshare/internal/audit"
	docdomain "docshare/internal/document/domain"
	"docshare/internal/share/domain"
	"docshare/internal/share/repository"
)

var (
	// ErrDocumentNotFound means the document does not exist or is not owned
	// by the grantor.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrGranteeNotFound means no registered account matches the grantee email.
	ErrGranteeNotFound = errors.New("no account found for that email")
	// ErrSelfShareForbidden means the grantor tried to share with themselves.
	ErrSelfShareForbidden = errors.New("cannot share a document with yourself")
	// ErrDuplicateActiveGrant means an active grant already covers the triple.
	ErrDuplicateActiveGrant = repository.ErrDuplicateActiveGrant
	// ErrGrantNotFound means the grant does not exist or does not involve the caller.
	ErrGrantNotFound = errors.New("grant not found")
	// ErrGrantInactiveOrExpired means the grant was revoked or its window passed.
	ErrGrantInactiveOrExpired = errors.New("grant is no longer active")
	// ErrPermissionDenied means the grant's level does not cover the request.
	ErrPermissionDenied = errors.New("grant does not permit this operation")
	// ErrInvalidGrant wraps field validation failures on a create request.
	ErrInvalidGrant = errors.New("invalid grant")
)

// DocumentRegistry is the slice of the document feature the engine consumes.
// It never reads or writes document bytes.
type DocumentRegistry interface {
	FindOwned(ctx context.Context, id, ownerID string) (*docdomain.Document, error)
	GetByID(ctx context.Context, id string) (*docdomain.Document, error)
	AppendShareRef(ctx context.Context, docID string, ref docdomain.ShareRef) error
}

// GranteeDirectory resolves grant parties to accounts.
type GranteeDirectory interface {
	GetByID(ctx context.Context, id string) (*Party, error)
	GetByEmail(ctx context.Context, email string) (*Party, error)
}

// Party is the minimal account view the engine needs.
type Party struct {
	ID    string
	Name  string
	Email string
}

// Notifier delivers share notifications. Best-effort; failures never roll
// back a grant.
type Notifier interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// Presigner produces time-limited download URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// downloadURLTTL bounds presigned links handed to grantees.
const downloadURLTTL = 15 * time.Minute

// ShareService is the sharing engine.
type ShareService struct {
	grants   repository.Repository
	docs     DocumentRegistry
	users    GranteeDirectory
	presign  Presigner
	notifier Notifier
	auditLog audit.AuditLogger
	clock    clockwork.Clock
	grantTTL time.Duration
	log      *zap.Logger
}

// NewShareService returns a ShareService. grantTTL is the default grant
// lifetime applied when a create request carries no explicit expiry.
func NewShareService(grants repository.Repository, docs DocumentRegistry, users GranteeDirectory, presign Presigner, notifier Notifier, auditLog audit.AuditLogger, clock clockwork.Clock, grantTTL time.Duration, log *zap.Logger) *ShareService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShareService{
		grants:   grants,
		docs:     docs,
		users:    users,
		presign:  presign,
		notifier: notifier,
		auditLog: auditLog,
		clock:    clock,
		grantTTL: grantTTL,
		log:      log,
	}
}

// CreateInput carries a grant creation request.
type CreateInput struct {
	DocumentID   string
	GranteeEmail string
	Permission   domain.Permission // defaults to view when empty
	Relationship domain.Relationship
	Message      string
	ExpiresAt    *time.Time // defaults to now + grantTTL when nil
}

// Create makes a new grant. Checks run in a fixed order: document ownership,
// grantee resolution, self-share, then the active-duplicate rule. The store's
// partial unique index backstops the duplicate check under concurrency.
func (s *ShareService) Create(ctx context.Context, grantorID string, in CreateInput) (*domain.Grant, error) {
	doc, err := s.docs.FindOwned(ctx, in.DocumentID, grantorID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	grantee, err := s.users.GetByEmail(ctx, in.GranteeEmail)
	if err != nil {
		return nil, err
	}
	if grantee == nil {
		return nil, ErrGranteeNotFound
	}
	if grantee.ID == grantorID {
		return nil, ErrSelfShareForbidden
	}

	now := s.clock.Now().UTC()
	existing, err := s.grants.FindActive(ctx, doc.ID, grantorID, grantee.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if now.Before(existing.ExpiresAt) {
			return nil, ErrDuplicateActiveGrant
		}
		// Expired but never swept; retire it so the new grant can take the
		// active slot under the unique index.
		if err := s.grants.Deactivate(ctx, existing.ID, now); err != nil {
			return nil, err
		}
	}

	permission := in.Permission
	if permission == "" {
		permission = domain.PermissionView
	}
	expiresAt := now.Add(s.grantTTL)
	if in.ExpiresAt != nil {
		expiresAt = in.ExpiresAt.UTC()
	}
	grant := &domain.Grant{
		ID:           uuid.New().String(),
		DocumentID:   doc.ID,
		GrantorID:    grantorID,
		GranteeID:    grantee.ID,
		Permission:   permission,
		Relationship: in.Relationship,
		Message:      in.Message,
		Active:       true,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := grant.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, err
	}

	// Advisory cache on the document row; the grant stays authoritative.
	if err := s.docs.AppendShareRef(ctx, doc.ID, docdomain.ShareRef{
		UserID:     grantee.ID,
		Permission: string(permission),
		SharedAt:   now,
	}); err != nil {
		s.log.Warn("share ref append failed", zap.String("document_id", doc.ID), zap.Error(err))
	}

	if s.notifier != nil {
		subject := fmt.Sprintf("%q has been shared with you", doc.Title)
		body := fmt.Sprintf("You have been given %s access to %q until %s.",
			permission, doc.Title, expiresAt.Format(time.RFC1123))
		if err := s.notifier.Deliver(ctx, grantee.Email, subject, body); err != nil {
			s.log.Warn("share notification failed", zap.String("grant_id", grant.ID), zap.Error(err))
		}
	}

	s.auditLog.LogEvent(ctx, grantorID, "share.create", grant.ID, string(permission))
	return grant, nil
}

// Revoke deactivates a grant owned by grantorID. Revoking an already-revoked
// grant is a no-op success.
func (s *ShareService) Revoke(ctx context.Context, grantorID, grantID string) error {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return err
	}
	if grant == nil || grant.GrantorID != grantorID {
		return ErrGrantNotFound
	}
	if !grant.Active {
		return nil
	}
	if err := s.grants.Deactivate(ctx, grantID, s.clock.Now().UTC()); err != nil {
		return err
	}
	s.auditLog.LogEvent(ctx, grantorID, "share.revoke", grantID, "")
	return nil
}

// Access honors one use of a grant at the required permission level. On
// success it records the use atomically and returns the document metadata
// plus the updated grant.
func (s *ShareService) Access(ctx context.Context, granteeID, grantID string, required domain.Permission) (*docdomain.Document, *domain.Grant, error) {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return nil, nil, err
	}
	if grant == nil || grant.GranteeID != granteeID {
		return nil, nil, ErrGrantNotFound
	}
	now := s.clock.Now().UTC()
	if !grant.Live(now) {
		return nil, nil, ErrGrantInactiveOrExpired
	}
	if !grant.Permission.Covers(required) {
		return nil, nil, ErrPermissionDenied
	}

	doc, err := s.docs.GetByID(ctx, grant.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, ErrDocumentNotFound
	}

	updated, err := s.grants.RecordAccess(ctx, grantID, now)
	if err != nil {
		return nil, nil, err
	}
	s.auditLog.LogEvent(ctx, granteeID, "share.access", grantID, string(required))
	return doc, updated, nil
}

// AccessDownloadURL honors a download-level access and returns a presigned
// URL for the document bytes.
func (s *ShareService) AccessDownloadURL(ctx context.Context, granteeID, grantID string) (string, *docdomain.Document, error) {
	doc, _, err := s.Access(ctx, granteeID, grantID, domain.PermissionDownload)
	if err != nil {
		return "", nil, err
	}
	url, err := s.presign.PresignGet(ctx, doc.ObjectKey, downloadURLTTL)
	if err != nil {
		return "", nil, err
	}
	return url, doc, nil
}

// ListReceived returns the grants naming granteeID that are still honorable:
// active and unexpired at the time of the call.
func (s *ShareService) ListReceived(ctx context.Context, granteeID string) ([]*domain.Grant, error) {
	all, err := s.grants.ListByGrantee(ctx, granteeID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	live := make([]*domain.Grant, 0, len(all))
	for _, g := range all {
		if g.Live(now) {
			live = append(live, g)
		}
	}
	return live, nil
}

// ListSent returns the grantor's full history, revoked and expired included,
// so owners keep audit visibility over past shares.
func (s *ShareService) ListSent(ctx context.Context, grantorID string) ([]*domain.Grant, error) {
	return s.grants.ListByGrantor(ctx, grantorID)
}

// SweepExpired retires every grant past its expiry. Access never depends on
// the sweep having run; it re-checks expiry itself.
func (s *ShareService) SweepExpired(ctx context.Context) (int64, error) {
	return s.grants.SweepExpired(ctx, s.clock.Now().UTC())
}
