// Package repository provides durable key-value persistence with
// prefix-scoped, paginated listing. Two implementations exist: a
// PostgreSQL table for server deployments and an embedded bbolt file
// for local use.
package repository

import "context"

// Page size bounds for List.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Entry describes one stored key in a listing.
type Entry struct {
	// Name is the key.
	Name string `json:"name"`
}

// ListOptions selects one page of keys.
type ListOptions struct {
	// Prefix restricts the listing to keys starting with this string.
	Prefix string
	// Limit caps the page size. Values <= 0 use DefaultPageSize;
	// values above MaxPageSize are clamped.
	Limit int
	// Cursor resumes a previous listing. Empty starts from the beginning.
	Cursor string
}

// ListPage is one page of a listing, in ascending lexicographic order.
type ListPage struct {
	Entries []Entry
	// Cursor resumes after the last returned entry. Empty when Complete.
	Cursor string
	// Complete is true when no further pages exist.
	Complete bool
}

// KV is the durable store contract the vault persists through.
type KV interface {
	// Get returns the value stored under name. The second return is
	// false when the key is absent.
	Get(ctx context.Context, name string) (string, bool, error)
	// Put stores value under name, overwriting any previous value.
	Put(ctx context.Context, name string, value string) error
	// Delete removes name. Deleting an absent key is not an error.
	Delete(ctx context.Context, name string) error
	// List returns one page of keys matching the options.
	List(ctx context.Context, opts ListOptions) (ListPage, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}
