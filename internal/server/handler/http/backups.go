package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkarpov/otpvault/internal/backup"
	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/store"
)

// BackupBrowser defines the listing and deletion operations required
// by the BackupsHandler.
type BackupBrowser interface {
	List(ctx context.Context, opts backup.ListOptions) (backup.Page, error)
	Delete(ctx context.Context, key string) error
}

// RestoreExporter turns stored backups back into collections or
// downloadable documents.
type RestoreExporter interface {
	Restore(ctx context.Context, key string, preview bool) (*models.BackupPayload, error)
	Export(ctx context.Context, key string, format string) ([]byte, string, error)
}

// BackupTrigger requests backups of a collection snapshot.
type BackupTrigger interface {
	Trigger(ctx context.Context, secrets []models.SecretRecord, reason string, immediate bool) (backup.TriggerResult, error)
}

// BackupsHandler handles HTTP requests for the backup trail.
type BackupsHandler struct {
	Backups   BackupBrowser
	Pipeline  RestoreExporter
	Scheduler BackupTrigger
	Store     SecretStore
}

// List handles GET /api/backups requests. Query parameters: limit,
// cursor, details.
func (h *BackupsHandler) List(w nethttp.ResponseWriter, r *nethttp.Request) {
	opts := backup.ListOptions{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			nethttp.Error(w, "invalid limit", nethttp.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	opts.Details = r.URL.Query().Get("details") == "true"

	page, err := h.Backups.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, page)
}

// Create handles POST /api/backups requests: an explicit immediate
// backup of the current collection.
func (h *BackupsHandler) Create(w nethttp.ResponseWriter, r *nethttp.Request) {
	secrets, err := h.Store.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Scheduler.Trigger(r.Context(), secrets, store.ReasonManual, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusCreated, result)
}

// Preview handles GET /api/backups/{key} requests, returning the
// decoded payload without touching the live collection.
func (h *BackupsHandler) Preview(w nethttp.ResponseWriter, r *nethttp.Request) {
	payload, err := h.Pipeline.Restore(r.Context(), chi.URLParam(r, "key"), true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, payload)
}

// Restore handles POST /api/backups/{key}/restore requests.
func (h *BackupsHandler) Restore(w nethttp.ResponseWriter, r *nethttp.Request) {
	payload, err := h.Pipeline.Restore(r.Context(), chi.URLParam(r, "key"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"restored": payload.Count,
		"reason":   payload.Reason,
	})
}

// Export handles GET /api/backups/{key}/export requests. Query
// parameter: format (uri, json, csv).
func (h *BackupsHandler) Export(w nethttp.ResponseWriter, r *nethttp.Request) {
	key := chi.URLParam(r, "key")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = backup.FormatJSON
	}

	doc, contentType, err := h.Pipeline.Export(r.Context(), key, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", key+"."+format))
	_, _ = w.Write(doc)
}

// Delete handles DELETE /api/backups/{key} requests.
func (h *BackupsHandler) Delete(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := h.Backups.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(nethttp.StatusNoContent)
}
