package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docshare/internal/document/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a document repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const docColumns = `id, owner_id, title, description, category, doc_type,
	file_name, original_name, object_key, mime_type, file_size,
	shared, shared_with, tags, archived, created_at, updated_at`

// Create persists the document. The document must have ID and ObjectKey set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Document) error {
	sharedWith, err := json.Marshal(refsOrEmpty(d.SharedWith))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(tagsOrEmpty(d.Tags))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, title, description, category, doc_type,
			file_name, original_name, object_key, mime_type, file_size,
			shared, shared_with, tags, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		d.ID, d.OwnerID, d.Title, d.Description, string(d.Category), string(d.Type),
		d.FileName, d.OriginalName, d.ObjectKey, d.MimeType, d.FileSize,
		d.Shared, sharedWith, tags, d.Archived, d.CreatedAt, d.UpdatedAt)
	return err
}

// GetByID returns the document for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// FindOwned returns the document only when it exists and belongs to ownerID;
// otherwise (nil, nil).
func (r *PostgresRepository) FindOwned(ctx context.Context, id, ownerID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanDocument(row)
}

// List returns a page of the owner's unarchived documents, newest first,
// along with the unpaged total.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, f ListFilter) ([]*domain.Document, int, error) {
	conds := []string{"owner_id = $1", "NOT archived"}
	args := []any{ownerID}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("doc_type = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 12
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

// UpdateMetadata replaces the mutable metadata fields of an owned document.
func (r *PostgresRepository) UpdateMetadata(ctx context.Context, id, ownerID string, title, description string, category domain.Category, docType domain.DocType, tags []string) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(tags))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE documents SET title = $3, description = $4, category = $5, doc_type = $6,
			tags = $7, updated_at = now()
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID, title, description, string(category), string(docType), tagsJSON)
	return err
}

// Delete removes an owned document row.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return err
}

// AppendShareRef appends one entry to the advisory shared-party list in a
// single statement.
func (r *PostgresRepository) AppendShareRef(ctx context.Context, docID string, ref domain.ShareRef) error {
	refJSON, err := json.Marshal([]domain.ShareRef{ref})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE documents SET shared = TRUE, shared_with = shared_with || $2::jsonb, updated_at = now()
		WHERE id = $1`,
		docID, refJSON)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		d                    domain.Document
		category, docType    string
		sharedWith, tagsJSON []byte
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Description, &category, &docType,
		&d.FileName, &d.OriginalName, &d.ObjectKey, &d.MimeType, &d.FileSize,
		&d.Shared, &sharedWith, &tagsJSON, &d.Archived, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.Category = domain.Category(category)
	d.Type = domain.DocType(docType)
	if len(sharedWith) > 0 {
		if err := json.Unmarshal(sharedWith, &d.SharedWith); err != nil {
			return nil, err
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &d.Tags); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func refsOrEmpty(refs []domain.ShareRef) []domain.ShareRef {
	if refs == nil {
		return []domain.ShareRef{}
	}
	return refs
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
