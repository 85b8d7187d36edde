package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

type redisBlobStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisBlobStore stores objects as plain redis strings. A sorted set with
// equal scores indexes the keys so prefix listing is a lexicographic range.
func NewRedisBlobStore(client *redis.Client, namespace string) BlobStore {
	namespace = strings.TrimSuffix(strings.TrimSpace(namespace), ":")
	if namespace == "" {
		namespace = "gema:proctor"
	}
	return &redisBlobStore{client: client, namespace: namespace}
}

func (s *redisBlobStore) objectKey(key string) string {
	return s.namespace + ":obj:" + key
}

func (s *redisBlobStore) indexKey() string {
	return s.namespace + ":index"
}

func (s *redisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.objectKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *redisBlobStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.objectKey(key), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: key})
		return nil
	})
	return err
}

func (s *redisBlobStore) ListByPrefix(ctx context.Context, prefix string, opts ListOptions) (ListPage, error) {
	limit := pageSize(opts)
	lower := "-"
	if prefix != "" {
		lower = "[" + prefix
	}
	if opts.Cursor != "" {
		lower = "(" + opts.Cursor
	}
	upper := "+"
	if prefix != "" {
		upper = "[" + prefix + "\xff"
	}

	keys, err := s.client.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{
		Min:   lower,
		Max:   upper,
		Count: int64(limit + 1),
	}).Result()
	if err != nil {
		return ListPage{}, err
	}

	if len(keys) <= limit {
		return ListPage{Keys: keys}, nil
	}
	return ListPage{Keys: keys[:limit], NextCursor: keys[limit-1]}, nil
}

func (s *redisBlobStore) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objectKeys := make([]string, 0, len(keys))
	members := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		objectKeys = append(objectKeys, s.objectKey(key))
		members = append(members, key)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, objectKeys...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	return err
}
