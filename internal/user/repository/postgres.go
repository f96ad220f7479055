package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docshare/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, password_hash, national_id, phone,
	street, city, state, pincode, verified, role, otp_digest, otp_expires_at,
	documents_count, profile_picture_key, last_login_at, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user for the case-normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		domain.NormalizeEmail(email))
	return scanUser(row)
}

// GetByNationalID returns the user for the national id, or nil if not found.
func (r *PostgresRepository) GetByNationalID(ctx context.Context, nationalID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE national_id = $1`, nationalID)
	return scanUser(row)
}

// Create persists the user. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, national_id, phone,
			street, city, state, pincode, verified, role, otp_digest, otp_expires_at,
			documents_count, profile_picture_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.NationalID, u.Phone,
		nullStr(u.Address.Street), nullStr(u.Address.City), nullStr(u.Address.State), nullStr(u.Address.Pincode),
		u.Verified, string(u.Role), nullStr(u.OTPDigest), nullTime(u.OTPExpiresAt),
		u.DocumentsCount, nullStr(u.ProfilePictureKey), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "national_id") {
				return ErrDuplicateNationalID
			}
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// SetOTPChallenge overwrites the OTP digest and expiry in one statement, so a
// verify racing a reissue sees either the old or the new challenge, never a mix.
func (r *PostgresRepository) SetOTPChallenge(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET otp_digest = $2, otp_expires_at = $3, updated_at = now()
		WHERE id = $1`,
		userID, digest, expiresAt)
	return err
}

// MarkVerified flips verified and clears the challenge atomically. The
// NOT verified guard makes the unverified→verified transition fire exactly once.
func (r *PostgresRepository) MarkVerified(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET verified = TRUE, otp_digest = NULL, otp_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND NOT verified`,
		userID)
	return err
}

// UpdateLastLogin records a successful authentication time.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	return err
}

// UpdateProfile updates mutable profile fields. Empty name or phone leave the
// stored value unchanged; address fields are replaced as a unit when any is set.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID, name, phone string, address domain.Address) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			name  = COALESCE(NULLIF($2, ''), name),
			phone = COALESCE(NULLIF($3, ''), phone),
			street = CASE WHEN $4 THEN $5 ELSE street END,
			city   = CASE WHEN $4 THEN $6 ELSE city END,
			state  = CASE WHEN $4 THEN $7 ELSE state END,
			pincode = CASE WHEN $4 THEN $8 ELSE pincode END,
			updated_at = now()
		WHERE id = $1`,
		userID, name, phone, address != domain.Address{},
		nullStr(address.Street), nullStr(address.City), nullStr(address.State), nullStr(address.Pincode))
	return err
}

// SetProfilePicture records the blob-store key of the profile picture.
func (r *PostgresRepository) SetProfilePicture(ctx context.Context, userID, key string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET profile_picture_key = $2, updated_at = now() WHERE id = $1`,
		userID, nullStr(key))
	return err
}

// AdjustDocumentsCount adds delta to the denormalized document count atomically.
func (r *PostgresRepository) AdjustDocumentsCount(ctx context.Context, userID string, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET documents_count = GREATEST(documents_count + $2, 0), updated_at = now()
		WHERE id = $1`,
		userID, delta)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                            domain.User
		street, city, state, pincode sql.NullString
		otpDigest, profileKey        sql.NullString
		otpExpiresAt, lastLoginAt    sql.NullTime
		role                         string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.NationalID, &u.Phone,
		&street, &city, &state, &pincode, &u.Verified, &role, &otpDigest, &otpExpiresAt,
		&u.DocumentsCount, &profileKey, &lastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Address = domain.Address{Street: street.String, City: city.String, State: state.String, Pincode: pincode.String}
	u.Role = domain.Role(role)
	u.OTPDigest = otpDigest.String
	u.ProfilePictureKey = profileKey.String
	if otpExpiresAt.Valid {
		t := otpExpiresAt.Time
		u.OTPExpiresAt = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
