package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"docshare/internal/audit"
	"docshare/internal/auth/service"
	"docshare/internal/otp"
	"docshare/internal/security"
	"docshare/internal/server/middleware"
	"docshare/internal/user/domain"
)

// stubUserRepo serves one fixed account.
type stubUserRepo struct {
	user domain.User
}

func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if id == s.user.ID {
		cp := s.user
		return &cp, nil
	}
	return nil, nil
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, nil
}

func (s *stubUserRepo) GetByNationalID(ctx context.Context, nationalID string) (*domain.User, error) {
	return nil, nil
}

func (s *stubUserRepo) Create(ctx context.Context, u *domain.User) error { return nil }

func (s *stubUserRepo) SetOTPChallenge(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	return nil
}

func (s *stubUserRepo) MarkVerified(ctx context.Context, userID string) error { return nil }

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return nil
}

func (s *stubUserRepo) UpdateProfile(ctx context.Context, userID, name, phone string, address domain.Address) error {
	return nil
}

func (s *stubUserRepo) SetProfilePicture(ctx context.Context, userID, key string) error { return nil }

func (s *stubUserRepo) AdjustDocumentsCount(ctx context.Context, userID string, delta int) error {
	return nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	repo := &stubUserRepo{user: domain.User{
		ID:       "user-1",
		Name:     "Asha Kumar",
		Email:    "asha@example.com",
		Verified: true,
	}}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	hasher := security.NewHasher(4)
	engine := otp.NewEngine(hasher, 10*time.Minute, clock)
	tokens := security.NewTestTokenProvider(t, time.Hour)
	svc := service.NewAuthService(repo, hasher, engine, tokens, nil, nil, audit.Nop(), clock, false, nil, nil)
	return New(svc)
}

func TestLogoutRoute(t *testing.T) {
	h := newTestHandler(t)
	r := chi.NewRouter()
	h.ProtectedRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "logged out") {
		t.Errorf("body = %q, want a logged out message", rec.Body.String())
	}
}

func TestLogoutRoute_UnknownUser(t *testing.T) {
	h := newTestHandler(t)
	r := chi.NewRouter()
	h.ProtectedRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "ghost"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
