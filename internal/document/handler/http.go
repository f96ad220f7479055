// Package handler exposes owner-facing document operations over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docshare/internal/document/domain"
	"docshare/internal/document/repository"
	"docshare/internal/document/service"
	"docshare/internal/httpx"
	"docshare/internal/server/middleware"
)

// Handler serves the /api/documents routes. All of them require a session.
type Handler struct {
	docs           *service.DocumentService
	maxUploadBytes int64
}

// New returns a document Handler.
func New(docs *service.DocumentService, maxUploadBytes int64) *Handler {
	return &Handler{docs: docs, maxUploadBytes: maxUploadBytes}
}

// Routes mounts the document endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/download", h.download)
}

type documentView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Type         string    `json:"type"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	Shared       bool      `json:"shared"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDocumentView(d *domain.Document) documentView {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentView{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Category:     string(d.Category),
		Type:         string(d.Type),
		OriginalName: d.OriginalName,
		MimeType:     d.MimeType,
		FileSize:     d.FileSize,
		Shared:       d.Shared,
		Tags:         tags,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	in := service.UploadInput{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Category:     domain.Category(r.FormValue("category")),
		Type:         domain.DocType(r.FormValue("type")),
		Tags:         splitTags(r.FormValue("tags")),
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
	}
	doc, err := h.docs.Upload(r.Context(), userID, in, file)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			httpx.JSON(w, http.StatusBadRequest, map[string]any{
				"error":  "invalid upload",
				"issues": verr.Issues,
			})
			return
		}
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"document": toDocumentView(doc)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := repository.ListFilter{
		Category: q.Get("category"),
		Type:     q.Get("type"),
		Search:   q.Get("search"),
		Page:     page,
		Limit:    limit,
	}
	docs, total, err := h.docs.List(r.Context(), userID, filter)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	views := make([]documentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, toDocumentView(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"documents": views,
		"total":     total,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeDocError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"document": toDocumentView(doc)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Type        string   `json:"type"`
		Tags        []string `json:"tags"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := h.docs.Update(r.Context(), chi.URLParam(r, "id"), userID,
		req.Title, req.Description, domain.Category(req.Category), domain.DocType(req.Type), req.Tags)
	if err != nil {
		writeDocError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"document": toDocumentView(doc)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	if err := h.docs.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeDocError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "document deleted"})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	url, doc, err := h.docs.DownloadURL(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeDocError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"url":           url,
		"original_name": doc.OriginalName,
		"mime_type":     doc.MimeType,
	})
}

func writeDocError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
