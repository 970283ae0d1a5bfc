// Package pgstore keeps posts in a PostgreSQL table, with the author as a JSONB document.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

var _ store.Store = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS posts (
	id      TEXT PRIMARY KEY,
	title   TEXT NOT NULL,
	content TEXT NOT NULL,
	author  JSONB NOT NULL,
	created TIMESTAMPTZ NOT NULL
)`

const selectColumns = `SELECT id, title, content, author, created FROM posts`

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to a postgres:// URL and creates the posts table if needed.
func Open(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, store.Wrap("open", fmt.Errorf("parse dsn: %w", err))
	}
	cfg.MaxConns = 20
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.ConnConfig.StatementCacheCapacity = 64

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, store.Wrap("open", fmt.Errorf("connect: %w", err))
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, store.Wrap("open", fmt.Errorf("create schema: %w", err))
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) InsertMany(ctx context.Context, posts []models.PostInput) ([]models.Post, error) {
	inputs, err := store.PrepareInsert(posts, s.now())
	if err != nil {
		return nil, err
	}
	stored := make([]models.Post, 0, len(inputs))
	if len(inputs) == 0 {
		return stored, nil
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, in := range inputs {
			post := in.WithID(uuid.NewString())
			batch.Queue(`INSERT INTO posts (id, title, content, author, created) VALUES ($1, $2, $3, $4, $5)`,
				post.ID, post.Title, post.Content, post.Author, post.Created)
			stored = append(stored, post)
		}
		br := tx.SendBatch(ctx, batch)
		for range inputs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return nil, store.Wrap("insert", err)
	}
	return stored, nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Author, &p.Created); err != nil {
		return models.Post{}, err
	}
	p.Created = models.Timestamp(p.Created)
	return p, nil
}

func (s *Store) FindAll(ctx context.Context) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, selectColumns)
	if err != nil {
		return nil, store.Wrap("find all", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, store.Wrap("find all", err)
		}
		posts = append(posts, p)
	}
	return posts, store.Wrap("find all", rows.Err())
}

func (s *Store) FindByID(ctx context.Context, id string) (models.Post, bool, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Post{}, false, nil
	}
	if err != nil {
		return models.Post{}, false, store.Wrap("find", err)
	}
	return p, true, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, store.Wrap("count", err)
}

func (s *Store) UpdateByID(ctx context.Context, id string, patch models.PostPatch) error {
	if err := store.PreparePatch(patch); err != nil {
		return err
	}

	var (
		sets []string
		args = []interface{}{id}
	)
	add := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}

	query := `UPDATE posts SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	if len(sets) == 0 {
		query = `SELECT 1 FROM posts WHERE id = $1`
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return store.Wrap("update", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return store.Wrap("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DropAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE posts`)
	return store.Wrap("drop", err)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
