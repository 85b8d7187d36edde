package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-proctor/internal/models"
)

type gormBlobStore struct {
	db *gorm.DB
}

// NewGormBlobStore stores objects in the blob_objects table of a SQL database.
func NewGormBlobStore(db *gorm.DB) BlobStore {
	return &gormBlobStore{db: db}
}

func (s *gormBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var object models.BlobObject
	err := s.db.WithContext(ctx).Where("object_key = ?", key).Take(&object).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return object.Data, nil
}

func (s *gormBlobStore) Put(ctx context.Context, key string, data []byte) error {
	object := models.BlobObject{Key: key, Data: data}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&object).Error
}

func (s *gormBlobStore) ListByPrefix(ctx context.Context, prefix string, opts ListOptions) (ListPage, error) {
	limit := pageSize(opts)
	query := s.db.WithContext(ctx).Model(&models.BlobObject{}).
		Where("object_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	if opts.Cursor != "" {
		query = query.Where("object_key > ?", opts.Cursor)
	}

	var keys []string
	if err := query.Order("object_key ASC").Limit(limit+1).Pluck("object_key", &keys).Error; err != nil {
		return ListPage{}, err
	}

	if len(keys) <= limit {
		return ListPage{Keys: keys}, nil
	}
	return ListPage{Keys: keys[:limit], NextCursor: keys[limit-1]}, nil
}

func (s *gormBlobStore) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("object_key IN ?", keys).Delete(&models.BlobObject{}).Error
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
