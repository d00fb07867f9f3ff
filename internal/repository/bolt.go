package repository

import (
	"bytes"
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

var entriesBucket = []byte("entries")

// BoltKV implements KV on an embedded bbolt database file.
type BoltKV struct {
	db *bolt.DB
}

// OpenBolt opens or creates a vault database at path.
func OpenBolt(path string) (*BoltKV, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.KindStorage, "open database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, vaulterr.Wrap(vaulterr.KindStorage, "create bucket", err)
	}
	return &BoltKV{db: db}, nil
}

// Close closes the database file.
func (b *BoltKV) Close() error {
	return b.db.Close()
}

// Get returns the value stored under name, or false when absent.
func (b *BoltKV) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(entriesBucket).Get([]byte(name)); v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, vaulterr.Wrap(vaulterr.KindStorage, "get entry", err)
	}
	return value, found, nil
}

// Put stores value under name, overwriting any previous value.
func (b *BoltKV) Put(ctx context.Context, name string, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(name), []byte(value))
	})
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindStorage, "put entry", err)
	}
	return nil
}

// Delete removes name. Deleting an absent key is not an error.
func (b *BoltKV) Delete(ctx context.Context, name string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete([]byte(name))
	})
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindStorage, "delete entry", err)
	}
	return nil
}

// List returns one page of keys matching opts, ascending by name.
func (b *BoltKV) List(ctx context.Context, opts ListOptions) (ListPage, error) {
	limit := clampLimit(opts.Limit)
	prefix := []byte(opts.Prefix)

	var page ListPage
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()

		start := prefix
		if opts.Cursor != "" && opts.Cursor > opts.Prefix {
			start = []byte(opts.Cursor)
		}

		k, _ := c.Seek(start)
		// The cursor names the last key of the previous page; skip it.
		if k != nil && string(k) == opts.Cursor {
			k, _ = c.Next()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if len(page.Entries) == limit {
				page.Cursor = page.Entries[limit-1].Name
				return nil
			}
			page.Entries = append(page.Entries, Entry{Name: string(k)})
		}
		page.Complete = true
		return nil
	})
	if err != nil {
		return ListPage{}, vaulterr.Wrap(vaulterr.KindStorage, "list entries", err)
	}
	return page, nil
}
