package backup

import (
	"context"

	"go.uber.org/zap"
)

// Cleanup enforces the retention bound: the maxBackups newest artifacts
// are kept, the rest deleted. maxBackups <= 0 means unlimited and is a
// no-op. Deletes are independent and best-effort; a failed delete is
// logged and does not block the others or fail the cleanup.
func (r *Repository) Cleanup(ctx context.Context, maxBackups int) error {
	if maxBackups <= 0 {
		return nil
	}

	entries, err := r.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(entries) <= maxBackups {
		return nil
	}

	excess := entries[maxBackups:]
	removed := 0
	for _, entry := range excess {
		if err := r.kv.Delete(ctx, entry.Key); err != nil {
			r.log.Warn("failed to delete expired backup",
				zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		r.log.Info("backup retention applied",
			zap.Int("removed", removed), zap.Int("kept", maxBackups))
	}
	return nil
}
