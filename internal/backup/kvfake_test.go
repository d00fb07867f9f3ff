package backup

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mkarpov/otpvault/internal/repository"
)

// memKV is an in-memory durable-store fake with real pagination
// semantics and injectable per-key delete failures.
type memKV struct {
	mu         sync.Mutex
	data       map[string]string
	failDelete map[string]bool
	putErr     error
}

func newMemKV() *memKV {
	return &memKV{
		data:       make(map[string]string),
		failDelete: make(map[string]bool),
	}
}

func (m *memKV) Get(ctx context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[name]
	return v, ok, nil
}

func (m *memKV) Put(ctx context.Context, name string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[name] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[name] {
		return errors.New("delete rejected")
	}
	delete(m.data, name)
	return nil
}

func (m *memKV) List(ctx context.Context, opts repository.ListOptions) (repository.ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}
	if limit > repository.MaxPageSize {
		limit = repository.MaxPageSize
	}

	var names []string
	for name := range m.data {
		if len(name) >= len(opts.Prefix) && name[:len(opts.Prefix)] == opts.Prefix && name > opts.Cursor {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	page := repository.ListPage{}
	for _, name := range names {
		if len(page.Entries) == limit {
			page.Cursor = page.Entries[limit-1].Name
			return page, nil
		}
		page.Entries = append(page.Entries, repository.Entry{Name: name})
	}
	page.Complete = true
	return page, nil
}

func (m *memKV) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
