package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "docshare-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "docshare-auth")
	}
	if cfg.JWTAudience != "docshare-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "docshare-api")
	}
	if cfg.SessionTTL != "720h" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "720h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.OTPCost != 10 {
		t.Errorf("OTPCost = %d, want 10", cfg.OTPCost)
	}
	if cfg.OTPTTL != "10m" {
		t.Errorf("OTPTTL = %q, want %q", cfg.OTPTTL, "10m")
	}
	if cfg.GrantTTL != "720h" {
		t.Errorf("GrantTTL = %q, want %q", cfg.GrantTTL, "720h")
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, int64(10<<20))
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("OTP_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if got := cfg.OTPTTLDuration(); got != 5*time.Minute {
		t.Errorf("OTPTTLDuration = %v, want 5m", got)
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail for BCRYPT_COST=99")
	}
}

func TestLoad_DevOTPRefusedInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("APP_ENV", "production")
	os.Setenv("MAIL_MODE", "api")
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
}

func TestLoad_MockMailRefusedInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail when MAIL_MODE=mock and APP_ENV=production")
	}
}

func TestTTLDurations_FallBackOnGarbage(t *testing.T) {
	cfg := &Config{SessionTTL: "bogus", OTPTTL: "", GrantTTL: "-5m", SweepInterval: "x"}
	if got := cfg.SessionTTLDuration(); got != 720*time.Hour {
		t.Errorf("SessionTTLDuration = %v, want 720h", got)
	}
	if got := cfg.OTPTTLDuration(); got != 10*time.Minute {
		t.Errorf("OTPTTLDuration = %v, want 10m", got)
	}
	if got := cfg.GrantTTLDuration(); got != 720*time.Hour {
		t.Errorf("GrantTTLDuration = %v, want 720h", got)
	}
	if got := cfg.SweepIntervalDuration(); got != time.Hour {
		t.Errorf("SweepIntervalDuration = %v, want 1h", got)
	}
}
