package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

func newTestRepo(t *testing.T, kv *memKV, key []byte) *Repository {
	t.Helper()
	codec, err := envelope.New(key, nil)
	require.NoError(t, err)
	return NewRepository(kv, codec, nil)
}

func seedBackups(t *testing.T, repo *Repository, days int) []string {
	t.Helper()
	ctx := context.Background()
	var keys []string
	for day := 1; day <= days; day++ {
		created := time.Date(2026, 2, day, 10, 30, 0, 0, time.Local)
		key := Key(created)
		payload := models.BackupPayload{
			Timestamp: created.Unix(),
			Version:   models.BackupFormatVersion,
			Count:     day,
			Reason:    "added",
			Secrets:   someSecrets("a"),
		}
		content, err := repo.codec.Encrypt(payload)
		require.NoError(t, err)
		require.NoError(t, repo.Put(ctx, key, content))
		keys = append(keys, key)
	}
	return keys
}

func TestKeyFormat(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.Local)
	key := Key(created)
	require.Equal(t, "backup_2026-02-03_04-05-06.json", key)

	parsed, err := ParseKeyTime(key)
	require.NoError(t, err)
	require.True(t, parsed.Equal(created))
}

func TestParseKeyTime_LegacyDayOnly(t *testing.T) {
	parsed, err := ParseKeyTime("backup_2024-11-20.json")
	require.NoError(t, err)
	require.True(t, parsed.Equal(time.Date(2024, 11, 20, 0, 0, 0, 0, time.Local)))

	_, err = ParseKeyTime("totp_secrets")
	require.Equal(t, vaulterr.KindValidation, vaulterr.KindOf(err))

	_, err = ParseKeyTime("backup_garbage.json")
	require.Equal(t, vaulterr.KindValidation, vaulterr.KindOf(err))
}

func TestList_NewestFirst(t *testing.T) {
	kv := newMemKV()
	repo := newTestRepo(t, kv, nil)
	keys := seedBackups(t, repo, 3)

	page, err := repo.List(context.Background(), ListOptions{Limit: 10})
	require.NoError(t, err)
	require.True(t, page.Complete)
	require.Len(t, page.Entries, 3)
	require.Equal(t, keys[2], page.Entries[0].Key)
	require.Equal(t, keys[1], page.Entries[1].Key)
	require.Equal(t, keys[0], page.Entries[2].Key)
	require.False(t, page.Entries[0].CreatedAt.IsZero())
	// No enrichment requested.
	require.Equal(t, UnknownCount, page.Entries[0].Count)
}

func TestListAll_PagesUntilComplete(t *testing.T) {
	kv := newMemKV()
	repo := newTestRepo(t, kv, nil)
	keys := seedBackups(t, repo, 7)
	// Unrelated key must never show up.
	require.NoError(t, kv.Put(context.Background(), "totp_secrets", "[]"))

	entries, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 7)
	seen := make(map[string]bool)
	for i, entry := range entries {
		require.False(t, seen[entry.Key], "key %q listed twice", entry.Key)
		seen[entry.Key] = true
		require.Equal(t, keys[len(keys)-1-i], entry.Key, "order at %d", i)
	}
}

func TestList_DetailEnrichment(t *testing.T) {
	kv := newMemKV()
	repo := newTestRepo(t, kv, nil)
	seedBackups(t, repo, 2)
	// A corrupt artifact between two good ones.
	require.NoError(t, repo.Put(context.Background(), "backup_2026-02-01_23-59-59.json", "{not json"))

	page, err := repo.List(context.Background(), ListOptions{Limit: 10, Details: true})
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)

	byKey := make(map[string]Entry)
	for _, e := range page.Entries {
		byKey[e.Key] = e
	}
	require.Equal(t, 1, byKey["backup_2026-02-01_10-30-00.json"].Count)
	require.Equal(t, "added", byKey["backup_2026-02-01_10-30-00.json"].Reason)
	require.Equal(t, 2, byKey["backup_2026-02-02_10-30-00.json"].Count)
	// The corrupt one carries the sentinel, not an error.
	require.Equal(t, UnknownCount, byKey["backup_2026-02-01_23-59-59.json"].Count)
}

func TestList_DetailEnrichmentEncrypted(t *testing.T) {
	key := make([]byte, envelope.KeySize)
	kv := newMemKV()
	repo := newTestRepo(t, kv, key)
	seedBackups(t, repo, 1)

	raw, _ := repo.Get(context.Background(), "backup_2026-02-01_10-30-00.json")
	require.True(t, envelope.IsEncrypted(raw))

	page, err := repo.List(context.Background(), ListOptions{Details: true})
	require.NoError(t, err)
	require.Equal(t, 1, page.Entries[0].Count)
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t, newMemKV(), nil)

	_, err := repo.Get(context.Background(), "backup_2026-01-01_00-00-00.json")
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))
}

func TestPayload_RejectsPayloadWithoutCollection(t *testing.T) {
	kv := newMemKV()
	repo := newTestRepo(t, kv, nil)
	require.NoError(t, repo.Put(context.Background(), "backup_2026-01-01_00-00-00.json", `{"timestamp":1}`))

	_, err := repo.Payload(context.Background(), "backup_2026-01-01_00-00-00.json")
	require.Equal(t, vaulterr.KindValidation, vaulterr.KindOf(err))
}

func TestDelete_MissingKey(t *testing.T) {
	repo := newTestRepo(t, newMemKV(), nil)

	err := repo.Delete(context.Background(), "backup_2026-01-01_00-00-00.json")
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))
}
