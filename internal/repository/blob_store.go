package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key or scope does not exist in the store.
var ErrNotFound = errors.New("repository: not found")

const defaultListPageSize = 100

// ListOptions controls prefix listing pagination.
type ListOptions struct {
	PageSize int
	// Cursor is the opaque continuation token from the previous page.
	Cursor string
}

// ListPage is one page of keys. NextCursor is empty on the last page.
type ListPage struct {
	Keys       []string
	NextCursor string
}

// BlobStore is the key/value backend holding activity logs and suggestions.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	ListByPrefix(ctx context.Context, prefix string, opts ListOptions) (ListPage, error)
	DeleteMany(ctx context.Context, keys []string) error
}

// ListAll walks every page under prefix.
func ListAll(ctx context.Context, store BlobStore, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor string
	)
	for {
		page, err := store.ListByPrefix(ctx, prefix, ListOptions{PageSize: defaultListPageSize, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		keys = append(keys, page.Keys...)
		if page.NextCursor == "" {
			return keys, nil
		}
		cursor = page.NextCursor
	}
}

func pageSize(opts ListOptions) int {
	if opts.PageSize <= 0 {
		return defaultListPageSize
	}
	return opts.PageSize
}

// MemoryBlobStore is an in-process BlobStore used for local runs and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBlobStore constructs an empty in-memory store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryBlobStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryBlobStore) ListByPrefix(_ context.Context, prefix string, opts ListOptions) (ListPage, error) {
	s.mu.RLock()
	keys := make([]string, 0)
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) && key > opts.Cursor {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	limit := pageSize(opts)
	if len(keys) <= limit {
		return ListPage{Keys: keys}, nil
	}
	return ListPage{Keys: keys[:limit], NextCursor: keys[limit-1]}, nil
}

func (s *MemoryBlobStore) DeleteMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}
