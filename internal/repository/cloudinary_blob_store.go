package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/gema-proctor/pkg/cloudinary"
)

// RawAssetStore is the subset of the Cloudinary client used as a blob backend.
type RawAssetStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix, cursor string, limit int) ([]string, string, error)
	Delete(ctx context.Context, keys []string) error
}

type cloudinaryBlobStore struct {
	assets RawAssetStore
}

// NewCloudinaryBlobStore keeps objects as Cloudinary raw assets.
func NewCloudinaryBlobStore(assets RawAssetStore) BlobStore {
	return &cloudinaryBlobStore{assets: assets}
}

func (s *cloudinaryBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.assets.Download(ctx, key)
	if errors.Is(err, cloudinary.ErrAssetNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *cloudinaryBlobStore) Put(ctx context.Context, key string, data []byte) error {
	return s.assets.Upload(ctx, key, data)
}

func (s *cloudinaryBlobStore) ListByPrefix(ctx context.Context, prefix string, opts ListOptions) (ListPage, error) {
	keys, next, err := s.assets.List(ctx, prefix, opts.Cursor, pageSize(opts))
	if err != nil {
		return ListPage{}, err
	}
	return ListPage{Keys: keys, NextCursor: next}, nil
}

func (s *cloudinaryBlobStore) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.assets.Delete(ctx, keys)
}
