// Package service implements owner-facing document operations: upload with a
// synchronous validation step, listing, metadata updates, deletion, and
// presigned downloads.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"docshare/internal/audit"
	"docshare/internal/document/domain"
	"docshare/internal/document/repository"
	"docshare/internal/document/storage"
)

// ErrDocumentNotFound is returned when a document does not exist or is not
// owned by the caller. Handlers map it to 404.
var ErrDocumentNotFound = errors.New("document not found")

// downloadURLTTL bounds how long a presigned download link stays usable.
const downloadURLTTL = 15 * time.Minute

var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/png":          true,
	"image/webp":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// UploadInput carries everything needed to validate and store one upload.
type UploadInput struct {
	Title        string
	Description  string
	Category     domain.Category
	Type         domain.DocType
	Tags         []string
	OriginalName string
	MimeType     string
	Size         int64
}

// ValidationError aggregates every problem with an upload so the client sees
// them all at once. Returned synchronously before any storage I/O happens.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid upload: " + strings.Join(e.Issues, "; ")
}

// ValidateUpload checks an upload against size, type, and metadata rules.
// Returns nil when the input is acceptable.
func ValidateUpload(in UploadInput, maxBytes int64) *ValidationError {
	var issues []string
	if strings.TrimSpace(in.Title) == "" {
		issues = append(issues, "title is required")
	} else if len(in.Title) > 100 {
		issues = append(issues, "title cannot exceed 100 characters")
	}
	if len(in.Description) > 500 {
		issues = append(issues, "description cannot exceed 500 characters")
	}
	if !domain.ValidCategory(in.Category) {
		issues = append(issues, "unknown document category")
	}
	if !domain.ValidDocType(in.Type) {
		issues = append(issues, "unknown document type")
	}
	if in.Size <= 0 {
		issues = append(issues, "file is empty")
	} else if in.Size > maxBytes {
		issues = append(issues, fmt.Sprintf("file exceeds the %d byte limit", maxBytes))
	}
	if !allowedMimeTypes[in.MimeType] {
		issues = append(issues, "unsupported file type")
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// UserCounter is the slice of the user repository the document service needs.
type UserCounter interface {
	AdjustDocumentsCount(ctx context.Context, userID string, delta int) error
}

// DocumentService coordinates metadata persistence with the byte store.
type DocumentService struct {
	repo     repository.Repository
	users    UserCounter
	blobs    storage.BlobStore
	auditLog audit.AuditLogger
	clock    clockwork.Clock
	maxBytes int64
}

// NewDocumentService returns a DocumentService with the given dependencies.
func NewDocumentService(repo repository.Repository, users UserCounter, blobs storage.BlobStore, auditLog audit.AuditLogger, clock clockwork.Clock, maxBytes int64) *DocumentService {
	return &DocumentService{
		repo:     repo,
		users:    users,
		blobs:    blobs,
		auditLog: auditLog,
		clock:    clock,
		maxBytes: maxBytes,
	}
}

// Upload validates the input, stores the bytes, then persists metadata and
// bumps the owner's document count. Validation failures surface before any
// byte is written.
func (s *DocumentService) Upload(ctx context.Context, ownerID string, in UploadInput, body io.Reader) (*domain.Document, error) {
	if verr := ValidateUpload(in, s.maxBytes); verr != nil {
		return nil, verr
	}
	now := s.clock.Now().UTC()
	key := storage.NewObjectKey(now)
	if err := s.blobs.Put(ctx, key, in.MimeType, body, in.Size); err != nil {
		return nil, fmt.Errorf("store bytes: %w", err)
	}
	doc := &domain.Document{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Category:     in.Category,
		Type:         in.Type,
		FileName:     uuid.New().String(),
		OriginalName: in.OriginalName,
		ObjectKey:    key,
		MimeType:     in.MimeType,
		FileSize:     in.Size,
		Tags:         trimTags(in.Tags),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.users.AdjustDocumentsCount(ctx, ownerID, 1); err != nil {
		return nil, err
	}
	s.auditLog.LogEvent(ctx, ownerID, "document.upload", doc.ID, doc.Title)
	return doc, nil
}

// List returns a page of the owner's documents plus the unpaged total.
func (s *DocumentService) List(ctx context.Context, ownerID string, f repository.ListFilter) ([]*domain.Document, int, error) {
	return s.repo.List(ctx, ownerID, f)
}

// Get returns an owned document or ErrDocumentNotFound.
func (s *DocumentService) Get(ctx context.Context, id, ownerID string) (*domain.Document, error) {
	doc, err := s.repo.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Update replaces mutable metadata of an owned document.
func (s *DocumentService) Update(ctx context.Context, id, ownerID, title, description string, category domain.Category, docType domain.DocType, tags []string) (*domain.Document, error) {
	doc, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	updated := *doc
	updated.Title = strings.TrimSpace(title)
	updated.Description = description
	updated.Category = category
	updated.Type = docType
	updated.Tags = trimTags(tags)
	if err := updated.Validate(); err != nil {
		return nil, &ValidationError{Issues: []string{err.Error()}}
	}
	if err := s.repo.UpdateMetadata(ctx, id, ownerID, updated.Title, updated.Description, category, docType, updated.Tags); err != nil {
		return nil, err
	}
	return s.Get(ctx, id, ownerID)
}

// Delete removes an owned document. Byte-store deletion is best-effort; the
// metadata row and count are authoritative.
func (s *DocumentService) Delete(ctx context.Context, id, ownerID string) error {
	doc, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.ObjectKey); err != nil {
		s.auditLog.LogEvent(ctx, ownerID, "document.delete_blob_failed", doc.ID, err.Error())
	}
	if err := s.users.AdjustDocumentsCount(ctx, ownerID, -1); err != nil {
		return err
	}
	s.auditLog.LogEvent(ctx, ownerID, "document.delete", doc.ID, doc.Title)
	return nil
}

// DownloadURL returns a presigned URL for an owned document's bytes.
func (s *DocumentService) DownloadURL(ctx context.Context, id, ownerID string) (string, *domain.Document, error) {
	doc, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return "", nil, err
	}
	url, err := s.blobs.PresignGet(ctx, doc.ObjectKey, downloadURLTTL)
	if err != nil {
		return "", nil, err
	}
	s.auditLog.LogEvent(ctx, ownerID, "document.download", doc.ID, doc.Title)
	return url, doc, nil
}

func trimTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
