//go:generate mockgen -destination ../mocks/mock_store.go -package mocks github.com/cppla/blogposts/store Store

// Package store defines the persistence contract for posts and its error taxonomy.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cppla/blogposts/models"
)

// ErrNotFound is returned by UpdateByID and DeleteByID when no post has the given id.
var ErrNotFound = errors.New("post not found")

// Store persists posts in a single document collection.
type Store interface {
	// InsertMany validates every input, assigns ids and persists them all.
	InsertMany(ctx context.Context, posts []models.PostInput) ([]models.Post, error)
	// FindAll returns every stored post. Order is unspecified.
	FindAll(ctx context.Context) ([]models.Post, error)
	// FindByID reports found=false, without an error, for an unknown id.
	FindByID(ctx context.Context, id string) (models.Post, bool, error)
	Count(ctx context.Context) (int64, error)
	// UpdateByID changes only the fields supplied in patch.
	UpdateByID(ctx context.Context, id string, patch models.PostPatch) error
	DeleteByID(ctx context.Context, id string) error
	// DropAll irreversibly removes every post. Calling it on an empty store is not an error.
	DropAll(ctx context.Context) error
	Close(ctx context.Context) error
}

// Error wraps a failure of the underlying database.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, passes ErrNotFound through and wraps anything else in *Error.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// PrepareInsert validates and normalizes a batch before any of it is written.
func PrepareInsert(posts []models.PostInput, now time.Time) ([]models.PostInput, error) {
	out := make([]models.PostInput, len(posts))
	for i, p := range posts {
		if err := p.Validate(); err != nil {
			return nil, &Error{Op: "insert", Err: fmt.Errorf("post %d: %w", i, err)}
		}
		out[i] = p.Normalize(now)
	}
	return out, nil
}

// PreparePatch validates a partial update.
func PreparePatch(patch models.PostPatch) error {
	if err := patch.Validate(); err != nil {
		return &Error{Op: "update", Err: err}
	}
	return nil
}
