// Package backup implements the event-driven backup engine: a
// debounced single-flight scheduler, key-value access to historical
// backup artifacts, retention enforcement and the restore/export
// pipeline.
package backup

import (
	"fmt"
	"time"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// Prefix is the key prefix shared by every backup artifact.
const Prefix = "backup_"

// Key layouts. Tokens are fixed-width and zero-padded so lexicographic
// order of key names equals chronological order.
const (
	keyLayout       = "2006-01-02_15-04-05"
	legacyKeyLayout = "2006-01-02"
)

// Key derives the backup key for a creation time.
func Key(t time.Time) string {
	return fmt.Sprintf("%s%s.json", Prefix, t.Format(keyLayout))
}

// ParseKeyTime extracts the creation time encoded in a backup key.
// Legacy day-only keys are interpreted as midnight of that date.
func ParseKeyTime(key string) (time.Time, error) {
	if len(key) <= len(Prefix) || key[:len(Prefix)] != Prefix {
		return time.Time{}, vaulterr.Newf(vaulterr.KindValidation, "not a backup key: %q", key)
	}
	stamp := key[len(Prefix):]
	if n := len(stamp) - len(".json"); n > 0 && stamp[n:] == ".json" {
		stamp = stamp[:n]
	}

	if t, err := time.ParseInLocation(keyLayout, stamp, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(legacyKeyLayout, stamp, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, vaulterr.Newf(vaulterr.KindValidation, "unparseable backup key: %q", key)
}
