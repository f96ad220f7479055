package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// User is the core identity record. Email and NationalID are globally unique;
// PasswordHash is an adaptive bcrypt digest, never the plaintext. The OTP
// challenge lives inline on the row (at most one per user; a reissue
// overwrites it in a single write).
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	NationalID   string // 12-digit government identifier
	Phone        string // 10-digit number
	Address      Address
	Verified     bool
	Role         Role
	OTPDigest    string     // empty when no live challenge
	OTPExpiresAt *time.Time // nil when no live challenge

	DocumentsCount    int // denormalized; adjusted atomically on upload/delete
	ProfilePictureKey string

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Address is the optional postal address on a profile.
type Address struct {
	Street  string
	City    string
	State   string
	Pincode string // 6 digits when set
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	emailRe      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nationalIDRe = regexp.MustCompile(`^\d{12}$`)
	phoneRe      = regexp.MustCompile(`^\d{10}$`)
	pincodeRe    = regexp.MustCompile(`^\d{6}$`)
)

// NormalizeEmail lowercases and trims an email for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if err := ValidateName(u.Name); err != nil {
		return err
	}
	if !emailRe.MatchString(u.Email) {
		return errors.New("invalid email format")
	}
	if !nationalIDRe.MatchString(u.NationalID) {
		return errors.New("national id must be a 12-digit number")
	}
	if err := ValidatePhone(u.Phone); err != nil {
		return err
	}
	if err := u.Address.Validate(); err != nil {
		return err
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// ValidateName checks a display name (2–50 characters after trimming).
func ValidateName(name string) error {
	n := strings.TrimSpace(name)
	if len(n) < 2 || len(n) > 50 {
		return errors.New("name must be between 2 and 50 characters")
	}
	return nil
}

// ValidatePhone checks a 10-digit phone number.
func ValidatePhone(phone string) error {
	if !phoneRe.MatchString(phone) {
		return errors.New("phone must be a 10-digit number")
	}
	return nil
}

// Validate checks the address; only the pincode has a format constraint.
func (a Address) Validate() error {
	if a.Pincode != "" && !pincodeRe.MatchString(a.Pincode) {
		return errors.New("pincode must be a 6-digit number")
	}
	return nil
}

// HasLiveChallenge reports whether the user has an unconsumed OTP challenge
// as of now. A challenge past its expiry is dead even if not yet cleared.
func (u *User) HasLiveChallenge(now time.Time) bool {
	return u.OTPDigest != "" && u.OTPExpiresAt != nil && now.Before(*u.OTPExpiresAt)
}
