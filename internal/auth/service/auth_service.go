// Package service implements the credential lifecycle: registration, OTP
// verification, password authentication, session minting, and profile
// maintenance.
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
	"go.uber.org/zap"

	"docshare/internal/audit"
	"docshare/internal/devotp"
	"docshare/internal/notification"
	"docshare/internal/otp"
	"docshare/internal/security"
	"docshare/internal/user/domain"
	"docshare/internal/user/repository"
)

var (
	// ErrDuplicateCredential means the email or national id is already taken.
	ErrDuplicateCredential = errors.New("credential already registered")
	// ErrInvalidCredentials means the email is unknown or the password is wrong.
	// The two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrOTPInvalidOrExpired means the code did not match or its window passed.
	ErrOTPInvalidOrExpired = errors.New("verification code is invalid or expired")
	// ErrAlreadyVerified means the account has completed verification before.
	ErrAlreadyVerified = errors.New("account is already verified")
	// ErrUserNotFound means no account matches the given id.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput wraps field validation failures raised before any
	// persistence call.
	ErrInvalidInput = errors.New("invalid input")
)

// UnverifiedAccountError is returned by Login when the password matched but
// the account never completed OTP verification. It carries the user id so
// clients can request a resend.
type UnverifiedAccountError struct {
	UserID string
}

func (e *UnverifiedAccountError) Error() string {
	return "account is not verified"
}

// minPasswordLen is the minimum accepted password length.
const minPasswordLen = 8

// maxAvatarBytes caps profile picture uploads.
const maxAvatarBytes = 2 << 20

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AvatarStore is the slice of the blob store profile pictures need.
type AvatarStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

// AuthService owns the register/verify/login flow.
type AuthService struct {
	users    repository.Repository
	hasher   *security.Hasher
	otps     *otp.Engine
	tokens   *security.TokenProvider
	sender   notification.Sender
	avatars  AvatarStore
	auditLog audit.AuditLogger
	clock    clockwork.Clock
	otpEcho  bool
	devOTPs  devotp.Store
	log      *zap.Logger
}

// NewAuthService returns an AuthService. When otpEcho is set, issued OTP
// plaintexts are returned to the caller in addition to being mailed, and
// recorded in devOTPs when non-nil; config validation refuses both in
// production.
func NewAuthService(users repository.Repository, hasher *security.Hasher, otps *otp.Engine, tokens *security.TokenProvider, sender notification.Sender, avatars AvatarStore, auditLog audit.AuditLogger, clock clockwork.Clock, otpEcho bool, devOTPs devotp.Store, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		otps:     otps,
		tokens:   tokens,
		sender:   sender,
		avatars:  avatars,
		auditLog: auditLog,
		clock:    clock,
		otpEcho:  otpEcho,
		devOTPs:  devOTPs,
		log:      log,
	}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	NationalID string
	Phone      string
	Address    domain.Address
}

// Register creates an unverified account and issues its first OTP challenge.
// The returned string is the OTP plaintext when echo mode is on, empty
// otherwise.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	if len(in.Password) < minPasswordLen {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(in.Name),
		Email:      domain.NormalizeEmail(in.Email),
		NationalID: in.NationalID,
		Phone:      in.Phone,
		Address:    in.Address,
		Role:       domain.RoleUser,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := user.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if existing, err := s.users.GetByEmail(ctx, user.Email); err != nil {
		return nil, "", err
	} else if existing != nil {
		return nil, "", fmt.Errorf("%w: email in use", ErrDuplicateCredential)
	}
	if existing, err := s.users.GetByNationalID(ctx, user.NationalID); err != nil {
		return nil, "", err
	} else if existing != nil {
		return nil, "", fmt.Errorf("%w: national id in use", ErrDuplicateCredential)
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, "", err
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		// The store's unique constraints backstop the checks above under
		// concurrent registration.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", fmt.Errorf("%w: email in use", ErrDuplicateCredential)
		}
		if errors.Is(err, repository.ErrDuplicateNationalID) {
			return nil, "", fmt.Errorf("%w: national id in use", ErrDuplicateCredential)
		}
		return nil, "", err
	}

	echo, err := s.issueAndDeliver(ctx, user)
	if err != nil {
		return nil, "", err
	}
	s.auditLog.LogEvent(ctx, user.ID, "auth.register", user.Email, "")
	return user, echo, nil
}

// VerifyOTP consumes the account's live challenge. On success the account is
// verified exactly once and a session token is minted.
func (s *AuthService) VerifyOTP(ctx context.Context, userID, code string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user == nil {
		return nil, "", time.Time{}, ErrUserNotFound
	}
	if user.Verified {
		return nil, "", time.Time{}, ErrAlreadyVerified
	}
	if !s.otps.Verify(user.OTPDigest, user.OTPExpiresAt, code) {
		return nil, "", time.Time{}, ErrOTPInvalidOrExpired
	}
	// MarkVerified clears the challenge in the same statement, making the
	// code single-use.
	if err := s.users.MarkVerified(ctx, userID); err != nil {
		return nil, "", time.Time{}, err
	}
	user.Verified = true
	user.OTPDigest = ""
	user.OTPExpiresAt = nil

	token, expiresAt, err := s.tokens.IssueSession(userID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.auditLog.LogEvent(ctx, userID, "auth.verify", user.Email, "")
	return user, token, expiresAt, nil
}

// ResendOTP replaces the account's challenge with a fresh code. The returned
// string is the plaintext when echo mode is on.
func (s *AuthService) ResendOTP(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if user.Verified {
		return "", ErrAlreadyVerified
	}
	echo, err := s.issueAndDeliver(ctx, user)
	if err != nil {
		return "", err
	}
	s.auditLog.LogEvent(ctx, userID, "auth.otp_resend", user.Email, "")
	return echo, nil
}

// Login authenticates by email and password and mints a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user == nil {
		s.auditLog.LogEvent(ctx, "", "auth.login_failure", domain.NormalizeEmail(email), "unknown email")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if s.hasher.Compare(user.PasswordHash, []byte(password)) != nil {
		s.auditLog.LogEvent(ctx, user.ID, "auth.login_failure", user.Email, "bad password")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, "", time.Time{}, &UnverifiedAccountError{UserID: user.ID}
	}

	now := s.clock.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastLoginAt = &now

	token, expiresAt, err := s.tokens.IssueSession(user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.auditLog.LogEvent(ctx, user.ID, "auth.login", user.Email, "")
	return user, token, expiresAt, nil
}

// Logout records the sign-out in the audit trail. Sessions are stateless, so
// the token itself stays valid until expiry; clients discard it.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if _, err := s.Me(ctx, userID); err != nil {
		return err
	}
	s.auditLog.LogEvent(ctx, userID, "auth.logout", userID, "")
	return nil
}

// Me returns the account for userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile updates name, phone, and address. Empty name or phone leave
// the stored values unchanged.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, phone string, address domain.Address) (*domain.User, error) {
	if name != "" {
		if err := domain.ValidateName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if phone != "" {
		if err := domain.ValidatePhone(phone); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if err := address.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.Me(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, strings.TrimSpace(name), phone, address); err != nil {
		return nil, err
	}
	s.auditLog.LogEvent(ctx, userID, "auth.profile_update", userID, "")
	return s.Me(ctx, userID)
}

// SetProfilePicture records the blob-store key of the account's picture.
func (s *AuthService) SetProfilePicture(ctx context.Context, userID, key string) error {
	if _, err := s.Me(ctx, userID); err != nil {
		return err
	}
	return s.users.SetProfilePicture(ctx, userID, key)
}

// UploadProfilePicture stores the image bytes and records its key on the
// account. The previous picture, if any, is left in the blob store.
func (s *AuthService) UploadProfilePicture(ctx context.Context, userID, mimeType string, size int64, body io.Reader) (*domain.User, error) {
	if !allowedAvatarTypes[mimeType] {
		return nil, fmt.Errorf("%w: profile picture must be a jpeg, png, or webp image", ErrInvalidInput)
	}
	if size <= 0 || size > maxAvatarBytes {
		return nil, fmt.Errorf("%w: profile picture cannot exceed %d bytes", ErrInvalidInput, maxAvatarBytes)
	}
	if _, err := s.Me(ctx, userID); err != nil {
		return nil, err
	}
	key := "avatars/" + uuid.New().String()
	if err := s.avatars.Put(ctx, key, mimeType, body, size); err != nil {
		return nil, fmt.Errorf("store picture: %w", err)
	}
	if err := s.users.SetProfilePicture(ctx, userID, key); err != nil {
		return nil, err
	}
	s.auditLog.LogEvent(ctx, userID, "auth.profile_picture", key, "")
	return s.Me(ctx, userID)
}

func (s *AuthService) issueAndDeliver(ctx context.Context, user *domain.User) (string, error) {
	code, err := s.otps.Issue(ctx, s.users, user.ID)
	if err != nil {
		return "", err
	}
	if s.sender != nil {
		body := fmt.Sprintf("Your verification code is %s.", code)
		if err := s.sender.Deliver(ctx, user.Email, "Verify your account", body); err != nil {
			s.log.Warn("otp delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	if s.devOTPs != nil {
		s.devOTPs.Put(ctx, user.Email, code)
	}
	if s.otpEcho {
		return code, nil
	}
	return "", nil
}
