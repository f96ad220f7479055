package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docshare/internal/share/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a grant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const grantColumns = `id, document_id, grantor_id, grantee_id, permission, relationship,
	message, active, expires_at, access_count, last_accessed_at, created_at, updated_at`

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (document_id, grantor_id, grantee_id) WHERE active.
const uniqueViolation = "23505"

// Create persists the grant. The grant must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, g *domain.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO grants (id, document_id, grantor_id, grantee_id, permission, relationship,
			message, active, expires_at, access_count, last_accessed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		g.ID, g.DocumentID, g.GrantorID, g.GranteeID, string(g.Permission), string(g.Relationship),
		g.Message, g.Active, g.ExpiresAt, g.AccessCount, nullTime(g.LastAccessedAt), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateActiveGrant
		}
		return err
	}
	return nil
}

// GetByID returns the grant for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Grant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = $1`, id)
	return scanGrant(row)
}

// FindActive returns the active grant for the triple, or nil when none exists.
// Expiry is not checked here; callers decide whether an expired-but-active
// grant blocks or gets retired.
func (r *PostgresRepository) FindActive(ctx context.Context, documentID, grantorID, granteeID string) (*domain.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+` FROM grants
		WHERE document_id = $1 AND grantor_id = $2 AND grantee_id = $3 AND active`,
		documentID, grantorID, granteeID)
	return scanGrant(row)
}

// ListByGrantor returns every grant the grantor ever created, newest first.
func (r *PostgresRepository) ListByGrantor(ctx context.Context, grantorID string) ([]*domain.Grant, error) {
	return r.list(ctx, `SELECT `+grantColumns+` FROM grants WHERE grantor_id = $1 ORDER BY created_at DESC`, grantorID)
}

// ListByGrantee returns every grant naming the grantee, newest first.
func (r *PostgresRepository) ListByGrantee(ctx context.Context, granteeID string) ([]*domain.Grant, error) {
	return r.list(ctx, `SELECT `+grantColumns+` FROM grants WHERE grantee_id = $1 ORDER BY created_at DESC`, granteeID)
}

func (r *PostgresRepository) list(ctx context.Context, query, arg string) ([]*domain.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Deactivate flips the grant inactive in a single statement.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE grants SET active = FALSE, updated_at = $2 WHERE id = $1`, id, now)
	return err
}

// RecordAccess increments the access counter and stamps the access time in a
// single statement so concurrent accesses never lose increments.
func (r *PostgresRepository) RecordAccess(ctx context.Context, id string, now time.Time) (*domain.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE grants
		SET access_count = access_count + 1, last_accessed_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING `+grantColumns,
		id, now)
	return scanGrant(row)
}

// SweepExpired flips every active grant past its expiry to inactive.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE grants SET active = FALSE, updated_at = $1 WHERE active AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*domain.Grant, error) {
	var (
		g            domain.Grant
		perm, rel    string
		lastAccessed sql.NullTime
	)
	err := row.Scan(&g.ID, &g.DocumentID, &g.GrantorID, &g.GranteeID, &perm, &rel,
		&g.Message, &g.Active, &g.ExpiresAt, &g.AccessCount, &lastAccessed, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	g.Permission = domain.Permission(perm)
	g.Relationship = domain.Relationship(rel)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		g.LastAccessedAt = &t
	}
	return &g, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
