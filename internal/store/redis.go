// internal/store/redis.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldDoc     = "doc"
	fieldVersion = "version"
)

// DefaultKeyPrefix namespaces room hashes in Redis.
var DefaultKeyPrefix = "uno:room:"

// Redis keeps each room in a hash {doc, version}. Writes run under WATCH on
// the room key, so a concurrent commit aborts the EXEC and surfaces as
// ErrConflict.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis builds a Redis store. A positive ttl is refreshed on every write
// so abandoned rooms expire on their own.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (s *Redis) key(code string) string {
	return s.prefix + code
}

func (s *Redis) Create(ctx context.Context, code string, data []byte) error {
	key := s.key(code)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, key, data, 1)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExists), errors.Is(err, redis.TxFailedErr):
		return ErrExists
	}
	return fmt.Errorf("create room %s: %w", code, err)
}

func (s *Redis) Load(ctx context.Context, code string) (Versioned, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(code)).Result()
	if err != nil {
		return Versioned{}, fmt.Errorf("load room %s: %w", code, err)
	}
	doc, ok := vals[fieldDoc]
	if !ok {
		return Versioned{}, ErrNotFound
	}
	version, err := strconv.ParseInt(vals[fieldVersion], 10, 64)
	if err != nil {
		return Versioned{}, fmt.Errorf("load room %s: bad version %q: %w", code, vals[fieldVersion], err)
	}
	return Versioned{Data: []byte(doc), Version: version}, nil
}

func (s *Redis) CompareAndSwap(ctx context.Context, code string, version int64, data []byte) (int64, error) {
	key := s.key(code)
	next := version + 1
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur != version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, key, data, next)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, redis.TxFailedErr):
		return 0, ErrConflict
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		return 0, err
	}
	return 0, fmt.Errorf("write room %s: %w", code, err)
}

func (s *Redis) Delete(ctx context.Context, code string, version int64) error {
	key := s.key(code)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur != version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, ErrConflict):
		return ErrConflict
	}
	return fmt.Errorf("delete room %s: %w", code, err)
}

// Codes scans the room keys under the store's prefix.
func (s *Redis) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *Redis) write(ctx context.Context, pipe redis.Pipeliner, key string, data []byte, version int64) {
	pipe.HSet(ctx, key, fieldDoc, data, fieldVersion, version)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}
