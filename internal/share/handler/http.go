// Package handler exposes the sharing engine over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	docdomain "docshare/internal/document/domain"
	"docshare/internal/httpx"
	"docshare/internal/server/middleware"
	"docshare/internal/share/domain"
	"docshare/internal/share/service"
)

// Handler serves the /api/shares routes. All of them require a session.
type Handler struct {
	shares *service.ShareService
}

// New returns a share Handler.
func New(shares *service.ShareService) *Handler {
	return &Handler{shares: shares}
}

// Routes mounts the share endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/sent", h.listSent)
	r.Get("/received", h.listReceived)
	r.Delete("/{id}", h.revoke)
	r.Get("/{id}/view", h.view)
	r.Get("/{id}/download", h.download)
}

type grantView struct {
	ID             string     `json:"id"`
	DocumentID     string     `json:"document_id"`
	GrantorID      string     `json:"grantor_id"`
	GranteeID      string     `json:"grantee_id"`
	Permission     string     `json:"permission"`
	Relationship   string     `json:"relationship,omitempty"`
	Message        string     `json:"message,omitempty"`
	Active         bool       `json:"active"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toGrantView(g *domain.Grant) grantView {
	return grantView{
		ID:             g.ID,
		DocumentID:     g.DocumentID,
		GrantorID:      g.GrantorID,
		GranteeID:      g.GranteeID,
		Permission:     string(g.Permission),
		Relationship:   string(g.Relationship),
		Message:        g.Message,
		Active:         g.Active,
		ExpiresAt:      g.ExpiresAt,
		AccessCount:    g.AccessCount,
		LastAccessedAt: g.LastAccessedAt,
		CreatedAt:      g.CreatedAt,
	}
}

type sharedDocumentView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Type         string `json:"type"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	FileSize     int64  `json:"file_size"`
}

func toSharedDocumentView(d *docdomain.Document) sharedDocumentView {
	return sharedDocumentView{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Category:     string(d.Category),
		Type:         string(d.Type),
		OriginalName: d.OriginalName,
		MimeType:     d.MimeType,
		FileSize:     d.FileSize,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	var req struct {
		DocumentID   string     `json:"document_id"`
		GranteeEmail string     `json:"grantee_email"`
		Permission   string     `json:"permission"`
		Relationship string     `json:"relationship"`
		Message      string     `json:"message"`
		ExpiresAt    *time.Time `json:"expires_at"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := h.shares.Create(r.Context(), userID, service.CreateInput{
		DocumentID:   req.DocumentID,
		GranteeEmail: req.GranteeEmail,
		Permission:   domain.Permission(req.Permission),
		Relationship: domain.Relationship(req.Relationship),
		Message:      req.Message,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		writeShareError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"grant": toGrantView(grant)})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	if err := h.shares.Revoke(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeShareError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "grant revoked"})
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	doc, grant, err := h.shares.Access(r.Context(), userID, chi.URLParam(r, "id"), domain.PermissionView)
	if err != nil {
		writeShareError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"document": toSharedDocumentView(doc),
		"grant":    toGrantView(grant),
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	url, doc, err := h.shares.AccessDownloadURL(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeShareError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"url":           url,
		"original_name": doc.OriginalName,
		"mime_type":     doc.MimeType,
	})
}

func (h *Handler) listSent(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	grants, err := h.shares.ListSent(r.Context(), userID)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": toGrantViews(grants)})
}

func (h *Handler) listReceived(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	grants, err := h.shares.ListReceived(r.Context(), userID)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": toGrantViews(grants)})
}

func toGrantViews(grants []*domain.Grant) []grantView {
	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, toGrantView(g))
	}
	return views
}

// writeShareError maps sharing-engine errors to status codes.
func writeShareError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSelfShareForbidden),
		errors.Is(err, service.ErrDuplicateActiveGrant),
		errors.Is(err, service.ErrInvalidGrant):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		httpx.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrGranteeNotFound),
		errors.Is(err, service.ErrGrantNotFound),
		errors.Is(err, service.ErrGrantInactiveOrExpired):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
