package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// PostgresKV implements KV against a PostgreSQL kv_entries table.
type PostgresKV struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresKV creates a PostgresKV using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance.
func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{DB: db}
}

// Get returns the value stored under name, or false when absent.
func (p *PostgresKV) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := p.DB.QueryRowContext(ctx, `
		SELECT value FROM kv_entries WHERE name = $1
	`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, vaulterr.Wrap(vaulterr.KindStorage, "get entry", err)
	}
	return value, true, nil
}

// Put stores value under name, overwriting any previous value.
func (p *PostgresKV) Put(ctx context.Context, name string, value string) error {
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO kv_entries (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, name, value)
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindStorage, "put entry", err)
	}
	return nil
}

// Delete removes name. Deleting an absent key is not an error.
func (p *PostgresKV) Delete(ctx context.Context, name string) error {
	_, err := p.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE name = $1`, name)
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindStorage, "delete entry", err)
	}
	return nil
}

// List returns one page of keys matching opts, ascending by name.
func (p *PostgresKV) List(ctx context.Context, opts ListOptions) (ListPage, error) {
	limit := clampLimit(opts.Limit)

	// Fetch one extra row to learn whether another page exists.
	rows, err := p.DB.QueryContext(ctx, `
		SELECT name FROM kv_entries
		WHERE name LIKE $1 ESCAPE '\' AND name > $2
		ORDER BY name
		LIMIT $3
	`, escapeLike(opts.Prefix)+"%", opts.Cursor, limit+1)
	if err != nil {
		return ListPage{}, vaulterr.Wrap(vaulterr.KindStorage, "list entries", err)
	}
	defer rows.Close()

	var page ListPage
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return ListPage{}, vaulterr.Wrap(vaulterr.KindStorage, "scan entry", err)
		}
		page.Entries = append(page.Entries, Entry{Name: name})
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, vaulterr.Wrap(vaulterr.KindStorage, "list entries", err)
	}

	if len(page.Entries) > limit {
		page.Entries = page.Entries[:limit]
		page.Cursor = page.Entries[limit-1].Name
	} else {
		page.Complete = true
	}
	return page, nil
}

// escapeLike escapes LIKE metacharacters so a literal prefix such as
// "backup_" does not match arbitrary characters at the underscore.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
