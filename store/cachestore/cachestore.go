// Package cachestore caches whole-collection reads of a store.Store in Redis.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

const (
	// KeyPrefix namespaces every key this package writes.
	KeyPrefix = "cache:posts:"

	defaultTTL = time.Hour
	opTimeout  = 2 * time.Second
)

var _ store.Store = (*Store)(nil)

// Store decorates a store.Store. FindAll and Count are served from Redis when present.
// Cached entries are keyed by a generation counter that every mutation bumps before and after
// it runs, so an entry filled from a read that raced a write is never served once the write returns.
type Store struct {
	next   store.Store
	rc     *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.SugaredLogger
}

// Options tune the cache.
type Options struct {
	TTL time.Duration
	// Namespace is inserted after KeyPrefix, letting several stores share one Redis DB.
	Namespace string
	Logger    *zap.Logger
}

// New wraps next with a cache stored in rc.
func New(next store.Store, rc *redis.Client, opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l := opts.Logger
	if l == nil {
		l = zap.NewNop()
	}
	prefix := KeyPrefix
	if opts.Namespace != "" {
		prefix += opts.Namespace + ":"
	}
	return &Store{next: next, rc: rc, ttl: ttl, prefix: prefix, log: l.Sugar()}
}

func (s *Store) genKey() string {
	return s.prefix + "gen"
}

func (s *Store) dataKey(name, gen string) string {
	return s.prefix + "data:" + name + ":" + gen
}

func (s *Store) InsertMany(ctx context.Context, posts []models.PostInput) ([]models.Post, error) {
	defer s.invalidate(ctx)()
	return s.next.InsertMany(ctx, posts)
}

func (s *Store) FindAll(ctx context.Context) ([]models.Post, error) {
	gen, cached := s.generation(ctx)
	if cached {
		if b, ok := s.get(ctx, s.dataKey("list", gen)); ok {
			var posts []models.Post
			if err := json.Unmarshal(b, &posts); err == nil {
				return posts, nil
			}
		}
	}
	posts, err := s.next.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if cached {
		if b, err := json.Marshal(posts); err == nil {
			s.fill(ctx, gen, "list", b)
		}
	}
	return posts, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (models.Post, bool, error) {
	return s.next.FindByID(ctx, id)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	gen, cached := s.generation(ctx)
	if cached {
		if b, ok := s.get(ctx, s.dataKey("count", gen)); ok {
			if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
				return n, nil
			}
		}
	}
	n, err := s.next.Count(ctx)
	if err != nil {
		return 0, err
	}
	if cached {
		s.fill(ctx, gen, "count", []byte(strconv.FormatInt(n, 10)))
	}
	return n, nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, patch models.PostPatch) error {
	defer s.invalidate(ctx)()
	return s.next.UpdateByID(ctx, id, patch)
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	defer s.invalidate(ctx)()
	return s.next.DeleteByID(ctx, id)
}

func (s *Store) DropAll(ctx context.Context) error {
	defer s.invalidate(ctx)()
	return s.next.DropAll(ctx)
}

// Close closes the wrapped store. The Redis client is owned by the caller.
func (s *Store) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

// generation reads the current cache generation. ok is false when Redis is unavailable,
// in which case reads go straight to the wrapped store and nothing is cached.
func (s *Store) generation(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	gen, err := s.rc.Get(ctx, s.genKey()).Result()
	switch {
	case err == redis.Nil:
		return "0", true
	case err != nil:
		s.log.Warnf("cache generation read failed key=%s err=%v", s.genKey(), err)
		return "", false
	}
	return gen, true
}

func (s *Store) get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	b, err := s.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warnf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// fill stores b under generation gen, but only while gen is still current.
// A mutation that started after the read bumps the generation and the fill is discarded.
func (s *Store) fill(ctx context.Context, gen, name string, b []byte) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	genKey := s.genKey()
	err := s.rc.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err == redis.Nil {
			cur, err = "0", nil
		}
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.dataKey(name, gen), b, s.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
	default:
		s.log.Warnf("cache set failed key=%s err=%v", s.dataKey(name, gen), err)
	}
}

var errStaleFill = errors.New("cache generation moved")

// invalidate bumps the generation before a mutation and returns a func that bumps it again
// and drops cached entries once the mutation has finished. Reads that overlap the mutation
// see a generation that is gone by the time it completes.
func (s *Store) invalidate(ctx context.Context) func() {
	ctx = context.WithoutCancel(ctx)
	s.bump(ctx)
	return func() {
		s.bump(ctx)
		s.purge(ctx)
	}
}

func (s *Store) bump(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.rc.Incr(ctx, s.genKey()).Err(); err != nil {
		s.log.Warnf("cache invalidate failed key=%s err=%v", s.genKey(), err)
	}
}

// purge deletes every cached entry under the store prefix using SCAN. The generation key is kept.
func (s *Store) purge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ {
		keys, cur, err := s.rc.Scan(ctx, cursor, s.prefix+"data:*", 1000).Result()
		if err != nil {
			s.log.Warnf("cache invalidate failed prefix=%s err=%v", s.prefix, err)
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := s.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				s.log.Warnf("cache invalidate failed prefix=%s err=%v", s.prefix, err)
			}
		}
		if cursor == 0 {
			return
		}
	}
}
