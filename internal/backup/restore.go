package backup

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/store"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// Pipeline turns a stored backup back into a live collection, or into
// a downloadable export.
type Pipeline struct {
	repo  *Repository
	store *store.Store
	log   *zap.Logger
}

// NewPipeline creates a Pipeline over the backup repository and the
// canonical secret store.
func NewPipeline(repo *Repository, st *store.Store, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{repo: repo, store: st, log: log}
}

// Restore decodes the backup under key. With preview it returns the
// decoded payload without touching the canonical collection. Otherwise
// it overwrites the collection and requests an immediate backup, so a
// fresh artifact always exists right after a restore.
func (p *Pipeline) Restore(ctx context.Context, key string, preview bool) (*models.BackupPayload, error) {
	payload, err := p.repo.Payload(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := validateRecords(payload.Secrets); err != nil {
		return nil, err
	}
	if preview {
		return payload, nil
	}

	err = p.store.Save(ctx, payload.Secrets, store.SaveOptions{
		Reason:    store.ReasonRestored,
		Immediate: true,
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("collection restored from backup",
		zap.String("key", key), zap.Int("records", len(payload.Secrets)))
	return payload, nil
}

func validateRecords(secrets []models.SecretRecord) error {
	for i, rec := range secrets {
		if rec.ID == "" || rec.Name == "" || rec.Secret == "" {
			return vaulterr.Newf(vaulterr.KindValidation,
				"backup record %d is missing id, name or secret", i)
		}
	}
	return nil
}
