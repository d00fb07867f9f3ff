package backup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/repository"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// UnknownCount marks an entry whose payload could not be decoded
// during detail enrichment.
const UnknownCount = -1

// Entry describes one backup artifact in a listing.
type Entry struct {
	// Key is the backup's durable-store key.
	Key string `json:"key"`
	// CreatedAt is the creation time parsed from the key name.
	CreatedAt time.Time `json:"createdAt"`
	// Count is the number of records in the backup, UnknownCount when
	// the listing was not enriched or the payload failed to decode.
	Count int `json:"count"`
	// Reason is the trigger reason, empty unless enriched.
	Reason string `json:"reason,omitempty"`
}

// ListOptions selects one page of backups.
type ListOptions struct {
	// Limit caps the page size, subject to the repository bounds.
	Limit int
	// Cursor resumes a previous listing.
	Cursor string
	// Details requests per-entry decrypt-and-count enrichment.
	Details bool
}

// Page is one page of backups, newest first.
type Page struct {
	Entries  []Entry `json:"entries"`
	Cursor   string  `json:"cursor,omitempty"`
	Complete bool    `json:"complete"`
}

// Repository provides access to historical backup artifacts.
type Repository struct {
	kv    repository.KV
	codec *envelope.Codec
	log   *zap.Logger
}

// NewRepository creates a Repository over the given durable store.
func NewRepository(kv repository.KV, codec *envelope.Codec, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{kv: kv, codec: codec, log: log}
}

// List returns one page of backups, newest first. Enrichment is
// best-effort per entry: one undecodable payload gets UnknownCount and
// does not abort the rest.
func (r *Repository) List(ctx context.Context, opts ListOptions) (Page, error) {
	kvPage, err := r.kv.List(ctx, repository.ListOptions{
		Prefix: Prefix,
		Limit:  opts.Limit,
		Cursor: opts.Cursor,
	})
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Cursor:   kvPage.Cursor,
		Complete: kvPage.Complete,
		Entries:  make([]Entry, 0, len(kvPage.Entries)),
	}
	// Key names sort chronologically, so newest-first is the reverse
	// of the store's lexicographic order.
	for i := len(kvPage.Entries) - 1; i >= 0; i-- {
		page.Entries = append(page.Entries, r.toEntry(ctx, kvPage.Entries[i].Name, opts.Details))
	}
	return page, nil
}

// ListAll pages through every backup and returns them newest first.
// Used only when an unbounded view is explicitly requested.
func (r *Repository) ListAll(ctx context.Context) ([]Entry, error) {
	var names []string
	cursor := ""
	for {
		kvPage, err := r.kv.List(ctx, repository.ListOptions{
			Prefix: Prefix,
			Limit:  repository.MaxPageSize,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range kvPage.Entries {
			names = append(names, e.Name)
		}
		if kvPage.Complete {
			break
		}
		cursor = kvPage.Cursor
	}

	entries := make([]Entry, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		entries = append(entries, r.toEntry(ctx, names[i], false))
	}
	return entries, nil
}

func (r *Repository) toEntry(ctx context.Context, key string, details bool) Entry {
	entry := Entry{Key: key, Count: UnknownCount}
	if t, err := ParseKeyTime(key); err == nil {
		entry.CreatedAt = t
	}
	if !details {
		return entry
	}

	payload, err := r.Payload(ctx, key)
	if err != nil {
		r.log.Warn("failed to decode backup for listing",
			zap.String("key", key), zap.Error(err))
		return entry
	}
	entry.Count = payload.Count
	if entry.Count == 0 {
		entry.Count = len(payload.Secrets)
	}
	entry.Reason = payload.Reason
	return entry
}

// Get returns the raw stored content of one backup.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	raw, found, err := r.kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", vaulterr.Newf(vaulterr.KindNotFound, "backup %q not found", key)
	}
	return raw, nil
}

// Payload fetches and decodes one backup, decrypting when needed, and
// validates that it actually carries a collection of records.
func (r *Repository) Payload(ctx context.Context, key string) (*models.BackupPayload, error) {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var payload models.BackupPayload
	if err := r.codec.Decrypt(raw, &payload); err != nil {
		return nil, err
	}
	if payload.Secrets == nil {
		return nil, vaulterr.Newf(vaulterr.KindValidation, "backup %q has no secret collection", key)
	}
	return &payload, nil
}

// Put stores content under key.
func (r *Repository) Put(ctx context.Context, key string, content string) error {
	return r.kv.Put(ctx, key, content)
}

// Delete removes one backup artifact.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.Get(ctx, key); err != nil {
		return err
	}
	return r.kv.Delete(ctx, key)
}
