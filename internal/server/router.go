// Package server assembles the HTTP router from the feature handlers and the
// shared middleware stack.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authhandler "docshare/internal/auth/handler"
	"docshare/internal/devotp"
	dochandler "docshare/internal/document/handler"
	"docshare/internal/httpx"
	"docshare/internal/notification"
	"docshare/internal/security"
	"docshare/internal/server/middleware"
	sharehandler "docshare/internal/share/handler"
	userdomain "docshare/internal/user/domain"
)

// Deps carries everything the router mounts.
type Deps struct {
	Log       *zap.Logger
	Tokens    *security.TokenProvider
	Auth      *authhandler.Handler
	Documents *dochandler.Handler
	Shares    *sharehandler.Handler

	// DevOTPs and MockMail enable the /api/dev routes when non-nil. Both are
	// nil in production.
	DevOTPs  devotp.Store
	MockMail *notification.MockSender
}

// NewRouter returns the assembled HTTP handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(d.Log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			d.Auth.Routes(ar)
			ar.Group(func(pr chi.Router) {
				pr.Use(middleware.RequireAuth(d.Tokens))
				d.Auth.ProtectedRoutes(pr)
			})
		})

		api.Group(func(pr chi.Router) {
			pr.Use(middleware.RequireAuth(d.Tokens))
			pr.Route("/documents", d.Documents.Routes)
			pr.Route("/shares", d.Shares.Routes)
		})

		if d.DevOTPs != nil || d.MockMail != nil {
			api.Route("/dev", func(dr chi.Router) {
				devRoutes(dr, d.DevOTPs, d.MockMail)
			})
		}
	})

	return r
}

// devRoutes exposes OTP plaintexts and captured mail for development.
func devRoutes(r chi.Router, otps devotp.Store, mail *notification.MockSender) {
	if otps != nil {
		r.Get("/otp", func(w http.ResponseWriter, req *http.Request) {
			email := userdomain.NormalizeEmail(req.URL.Query().Get("email"))
			if email == "" {
				httpx.Error(w, http.StatusBadRequest, "email query parameter is required")
				return
			}
			code, ok := otps.Get(req.Context(), email)
			if !ok {
				httpx.Error(w, http.StatusNotFound, "no live code for that email")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]string{"email": email, "otp": code})
		})
	}
	if mail != nil {
		r.Get("/emails", func(w http.ResponseWriter, _ *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]any{"emails": mail.Recent()})
		})
		r.Get("/emails/{name}", func(w http.ResponseWriter, req *http.Request) {
			raw, err := mail.Read(chi.URLParam(req, "name"))
			if err != nil {
				httpx.Error(w, http.StatusNotFound, "no such email")
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write(raw)
		})
		r.Delete("/emails", func(w http.ResponseWriter, _ *http.Request) {
			if err := mail.Clear(); err != nil {
				httpx.Error(w, http.StatusInternalServerError, "internal error")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]string{"message": "emails cleared"})
		})
	}
}
