// Package boltstore keeps posts as JSON documents in a single bolt bucket.
package boltstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

var bucketName = []byte("posts")

// Compile-time assertion that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by a local bolt file.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the bolt file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, store.Wrap("open", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, store.Wrap("open", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) InsertMany(ctx context.Context, posts []models.PostInput) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("insert", err)
	}
	inputs, err := store.PrepareInsert(posts, s.now())
	if err != nil {
		return nil, err
	}

	stored := make([]models.Post, 0, len(inputs))
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		for _, in := range inputs {
			post := in.WithID(uuid.NewString())
			value, err := json.Marshal(post)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(post.ID), value); err != nil {
				return err
			}
			stored = append(stored, post)
		}
		return nil
	})
	if err != nil {
		return nil, store.Wrap("insert", err)
	}
	return stored, nil
}

func (s *Store) FindAll(ctx context.Context) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("find all", err)
	}
	posts := []models.Post{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			var post models.Post
			if err := json.Unmarshal(value, &post); err != nil {
				return err
			}
			posts = append(posts, post)
			return nil
		})
	})
	if err != nil {
		return nil, store.Wrap("find all", err)
	}
	return posts, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (models.Post, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Post{}, false, store.Wrap("find", err)
	}
	var (
		post  models.Post
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		value := bucket.Get([]byte(id))
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &post)
	})
	if err != nil {
		return models.Post{}, false, store.Wrap("find", err)
	}
	return post, found, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.Wrap("count", err)
	}
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket(bucketName); bucket != nil {
			n = int64(bucket.Stats().KeyN)
		}
		return nil
	})
	return n, store.Wrap("count", err)
}

func (s *Store) UpdateByID(ctx context.Context, id string, patch models.PostPatch) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("update", err)
	}
	if err := store.PreparePatch(patch); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return store.ErrNotFound
		}
		value := bucket.Get([]byte(id))
		if value == nil {
			return store.ErrNotFound
		}
		var post models.Post
		if err := json.Unmarshal(value, &post); err != nil {
			return err
		}
		updated, err := json.Marshal(patch.Apply(post))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), updated)
	})
	return store.Wrap("update", err)
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("delete", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil || bucket.Get([]byte(id)) == nil {
			return store.ErrNotFound
		}
		return bucket.Delete([]byte(id))
	})
	return store.Wrap("delete", err)
}

func (s *Store) DropAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("drop", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return nil
	})
	return store.Wrap("drop", err)
}

// Close releases the file lock.
func (s *Store) Close(context.Context) error {
	return store.Wrap("close", s.db.Close())
}
