// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "docshare-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "docshare-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// SessionTTL is the session token lifetime (e.g. "720h" for 30 days).
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31) for password hashes; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTPCost is the bcrypt cost factor for OTP digests; default 10 (short-lived secrets).
	OTPCost int `mapstructure:"OTP_COST"`
	// OTPTTL is the OTP challenge validity window (e.g. "10m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// GrantTTL is the default share grant lifetime (e.g. "720h" for 30 days).
	GrantTTL string `mapstructure:"GRANT_TTL"`
	// SweepInterval is how often the sweeper flips expired grants inactive (e.g. "1h").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// MaxUploadBytes caps document upload size; default 10 MiB.
	MaxUploadBytes int64 `mapstructure:"MAX_UPLOAD_BYTES"`

	// S3Bucket / S3Region / S3Endpoint / S3AccessKey / S3SecretKey configure the document byte store.
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`

	// MailMode selects the outbound mail transport: "api" (HTTP mail API) or "mock" (writes files; dev only).
	MailMode string `mapstructure:"MAIL_MODE"`
	// MailAPIKey is the API key for the mail API transport.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`
	// MailAPIBaseURL is the mail API endpoint.
	MailAPIBaseURL string `mapstructure:"MAIL_API_BASE_URL"`
	// MailSender is the From address for outbound mail.
	MailSender string `mapstructure:"MAIL_SENDER"`
	// MailDir is where the mock transport writes outgoing mail (dev only).
	MailDir string `mapstructure:"MAIL_DIR"`

	// OTPReturnToClient when true enables dev OTP mode: plaintext codes retrievable via GET /api/dev/otp.
	// Must not be true when Env is production (startup error).
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "docshare-auth")
	v.SetDefault("JWT_AUDIENCE", "docshare-api")
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_COST", 10)
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("GRANT_TTL", "720h") // 30d
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("MAX_UPLOAD_BYTES", int64(10<<20))
	v.SetDefault("S3_BUCKET", "docshare")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("MAIL_MODE", "mock")
	v.SetDefault("MAIL_API_BASE_URL", "")
	v.SetDefault("MAIL_SENDER", "no-reply@docshare.local")
	v.SetDefault("MAIL_DIR", "emails")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.MailMode == "mock" && cfg.Env == "production" {
		return nil, errors.New("config: MAIL_MODE=mock must not be used when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPCost == 0 {
		cfg.OTPCost = 10
	}
	if cfg.OTPCost < 4 || cfg.OTPCost > 31 {
		return nil, errors.New("config: OTP_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// SessionTTLDuration parses SessionTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// OTPTTLDuration parses OTPTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) OTPTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// GrantTTLDuration parses GrantTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) GrantTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.GrantTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// SweepIntervalDuration parses SweepInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
