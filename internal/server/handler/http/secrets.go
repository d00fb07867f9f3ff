package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/otp"
)

// SecretStore defines the collection operations required by the
// SecretsHandler.
type SecretStore interface {
	// GetAll returns the decrypted collection.
	GetAll(ctx context.Context) ([]models.SecretRecord, error)
	// Get returns one record by ID.
	Get(ctx context.Context, id string) (models.SecretRecord, error)
	// Add validates and persists a new record.
	Add(ctx context.Context, rec models.SecretRecord) (models.SecretRecord, error)
	// Update replaces the record with rec.ID.
	Update(ctx context.Context, rec models.SecretRecord) (models.SecretRecord, error)
	// Delete removes the record with the given ID.
	Delete(ctx context.Context, id string) error
}

// SecretsHandler handles HTTP requests for the secret collection.
type SecretsHandler struct {
	Store SecretStore
}

// List handles GET /api/secrets requests.
func (h *SecretsHandler) List(w nethttp.ResponseWriter, r *nethttp.Request) {
	secrets, err := h.Store.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{"secrets": secrets, "count": len(secrets)})
}

// Create handles POST /api/secrets requests.
func (h *SecretsHandler) Create(w nethttp.ResponseWriter, r *nethttp.Request) {
	var rec models.SecretRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		nethttp.Error(w, "invalid body", nethttp.StatusBadRequest)
		return
	}

	created, err := h.Store.Add(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusCreated, created)
}

// Update handles PUT /api/secrets/{id} requests.
func (h *SecretsHandler) Update(w nethttp.ResponseWriter, r *nethttp.Request) {
	var rec models.SecretRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		nethttp.Error(w, "invalid body", nethttp.StatusBadRequest)
		return
	}
	rec.ID = chi.URLParam(r, "id")

	updated, err := h.Store.Update(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, updated)
}

// Delete handles DELETE /api/secrets/{id} requests.
func (h *SecretsHandler) Delete(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(nethttp.StatusNoContent)
}

// Code handles GET /api/secrets/{id}/code requests, returning the
// record's current one-time code.
func (h *SecretsHandler) Code(w nethttp.ResponseWriter, r *nethttp.Request) {
	rec, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	code, err := otp.Generate(rec, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, code)
}

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
