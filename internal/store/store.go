// Package store owns the canonical secret collection. Every mutation
// runs a read-decrypt, modify, encrypt-write cycle over the durable
// store and then notifies the backup scheduler.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/repository"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// CanonicalKey is the durable-store key holding the secret collection.
const CanonicalKey = "totp_secrets"

// Save reasons reported to the backup scheduler.
const (
	ReasonAdded    = "added"
	ReasonUpdated  = "updated"
	ReasonDeleted  = "deleted"
	ReasonRestored = "restored"
	ReasonManual   = "manual"
)

// SaveOptions controls how a save is reported to the scheduler.
type SaveOptions struct {
	// Reason records what kind of mutation caused the save.
	Reason string
	// Immediate requests a backup that bypasses the debounce window.
	Immediate bool
}

// Notifier receives the collection after every successful save. The
// store never fails a save because of the notifier; backup outcomes
// are the scheduler's concern.
type Notifier interface {
	Notify(ctx context.Context, secrets []models.SecretRecord, reason string, immediate bool)
}

// Store is the canonical secret collection backed by a KV repository.
type Store struct {
	kv     repository.KV
	codec  *envelope.Codec
	log    *zap.Logger
	notify Notifier
}

// New creates a Store over the given repository and codec.
func New(kv repository.KV, codec *envelope.Codec, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, codec: codec, log: log}
}

// SetNotifier wires the backup scheduler. May be left unset in tests
// and one-shot CLI commands that do not want backups.
func (s *Store) SetNotifier(n Notifier) {
	s.notify = n
}

// GetAll returns the decrypted collection. An absent blob yields an
// empty collection. An encrypted blob with no key configured yields an
// empty collection and a warning; the blob is left untouched so the
// data becomes readable again once the key is restored.
func (s *Store) GetAll(ctx context.Context) ([]models.SecretRecord, error) {
	raw, found, err := s.kv.Get(ctx, CanonicalKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.SecretRecord{}, nil
	}
	if envelope.IsEncrypted(raw) && !s.codec.Enabled() {
		s.log.Warn("stored secrets are encrypted but no key is configured, returning empty collection")
		return []models.SecretRecord{}, nil
	}

	var secrets []models.SecretRecord
	if err := s.codec.Decrypt(raw, &secrets); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = []models.SecretRecord{}
	}
	return secrets, nil
}

// Save serializes, encrypts and overwrites the whole collection, then
// notifies the scheduler. The write is a blind overwrite: concurrent
// savers race and the last completed write wins. That is an accepted
// limitation of this layer, not something it tries to mitigate.
func (s *Store) Save(ctx context.Context, secrets []models.SecretRecord, opts SaveOptions) error {
	if secrets == nil {
		secrets = []models.SecretRecord{}
	}
	raw, err := s.codec.Encrypt(secrets)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, CanonicalKey, raw); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.Notify(ctx, secrets, opts.Reason, opts.Immediate)
	}
	return nil
}

// Add validates rec, assigns an ID and creation time when absent,
// rejects duplicates and persists the grown collection.
func (s *Store) Add(ctx context.Context, rec models.SecretRecord) (models.SecretRecord, error) {
	if rec.Type == "" {
		rec.Type = models.TOTP
	}
	if err := rec.Validate(); err != nil {
		return models.SecretRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}

	secrets, err := s.GetAll(ctx)
	if err != nil {
		return models.SecretRecord{}, err
	}
	for _, existing := range secrets {
		if existing.ID == rec.ID {
			return models.SecretRecord{}, vaulterr.Newf(vaulterr.KindValidation, "secret %q already exists", rec.ID)
		}
		if existing.ConflictsWith(rec) {
			return models.SecretRecord{}, vaulterr.Newf(vaulterr.KindValidation,
				"duplicate secret for %q/%q", rec.Name, rec.Account)
		}
	}

	secrets = append(secrets, rec)
	if err := s.Save(ctx, secrets, SaveOptions{Reason: ReasonAdded}); err != nil {
		return models.SecretRecord{}, err
	}
	return rec, nil
}

// Update replaces the record with rec.ID. Duplicate detection excludes
// the record being updated.
func (s *Store) Update(ctx context.Context, rec models.SecretRecord) (models.SecretRecord, error) {
	if rec.Type == "" {
		rec.Type = models.TOTP
	}
	if err := rec.Validate(); err != nil {
		return models.SecretRecord{}, err
	}

	secrets, err := s.GetAll(ctx)
	if err != nil {
		return models.SecretRecord{}, err
	}

	idx := -1
	for i, existing := range secrets {
		if existing.ID == rec.ID {
			idx = i
			continue
		}
		if existing.ConflictsWith(rec) {
			return models.SecretRecord{}, vaulterr.Newf(vaulterr.KindValidation,
				"duplicate secret for %q/%q", rec.Name, rec.Account)
		}
	}
	if idx < 0 {
		return models.SecretRecord{}, vaulterr.Newf(vaulterr.KindNotFound, "secret %q not found", rec.ID)
	}

	if rec.CreatedAt == 0 {
		rec.CreatedAt = secrets[idx].CreatedAt
	}
	secrets[idx] = rec
	if err := s.Save(ctx, secrets, SaveOptions{Reason: ReasonUpdated}); err != nil {
		return models.SecretRecord{}, err
	}
	return rec, nil
}

// Delete removes the record with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	secrets, err := s.GetAll(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i, existing := range secrets {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return vaulterr.Newf(vaulterr.KindNotFound, "secret %q not found", id)
	}

	secrets = append(secrets[:idx], secrets[idx+1:]...)
	return s.Save(ctx, secrets, SaveOptions{Reason: ReasonDeleted})
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (models.SecretRecord, error) {
	secrets, err := s.GetAll(ctx)
	if err != nil {
		return models.SecretRecord{}, err
	}
	for _, rec := range secrets {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.SecretRecord{}, vaulterr.Newf(vaulterr.KindNotFound, "secret %q not found", id)
}
