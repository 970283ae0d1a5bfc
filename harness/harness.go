// Package harness runs the blog service against a disposable test database and drives it over HTTP.
//
// A harness moves through a fixed lifecycle:
//
//	Stopped -> Running -> (Seeded -> Exercised -> TornDown)* -> Stopped
//
// BeforeAll starts the server, BeforeEach seeds generated posts, Exercise marks the test body
// as started, AfterEach drops the test database and AfterAll stops the server. Calling a step
// out of order returns ErrInvalidTransition.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cppla/blogposts/app"
	"github.com/cppla/blogposts/config"
	"github.com/cppla/blogposts/fixtures"
	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
	"github.com/cppla/blogposts/utils"
)

// ErrInvalidTransition is returned when a lifecycle step is called in the wrong state.
var ErrInvalidTransition = errors.New("harness: invalid lifecycle transition")

// State is a lifecycle position.
type State int

const (
	Stopped State = iota
	Running
	Seeded
	Exercised
	TornDown
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Seeded:
		return "seeded"
	case Exercised:
		return "exercised"
	case TornDown:
		return "torn down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Harness. The zero value is usable.
type Options struct {
	// DatabaseURL is the test database. When empty, TEST_DATABASE_URL is used,
	// and failing that a fresh bolt file in a temporary directory.
	DatabaseURL string
	// SeedCount is how many posts BeforeEach inserts. Zero or less falls back to the
	// configured SeedCount (SEED_COUNT), then fixtures.DefaultSeedCount.
	SeedCount int
	// ConfigPath is an optional JSON config file. Missing files are ignored.
	ConfigPath string
}

// Harness owns one running server and its test database.
type Harness struct {
	opts Options

	mu        sync.Mutex
	state     State
	app       *app.App
	seedCount int
	tmpDir    string
	seeded    []models.Post
}

// New returns a stopped harness.
func New(opts Options) *Harness {
	return &Harness{opts: opts}
}

// State returns the current lifecycle state.
func (h *Harness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Harness) expect(step string, allowed ...State) error {
	for _, s := range allowed {
		if h.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, step, h.state)
}

// BeforeAll starts the server bound to the test database.
func (h *Harness) BeforeAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.expect("BeforeAll", Stopped); err != nil {
		return err
	}

	cfg, err := config.Parse(h.opts.ConfigPath)
	if err != nil {
		return err
	}
	url, err := h.databaseURL(cfg)
	if err != nil {
		return err
	}
	cfg.DatabaseURL = url
	cfg.AppPort = "127.0.0.1:0"
	cfg.GinMode = "test"
	cfg.GinPath = ""
	cfg.RateLimitPerMinute = 0

	a, err := app.RunServer(ctx, cfg)
	if err != nil {
		h.removeTmpDir()
		return fmt.Errorf("harness: start server: %w", err)
	}
	h.app = a
	h.seedCount = h.opts.SeedCount
	if h.seedCount <= 0 {
		h.seedCount = cfg.SeedCount
	}
	h.state = Running
	utils.Sugar.Infof("harness serving %s on %s", url, a.URL())
	return nil
}

func (h *Harness) databaseURL(cfg config.AppConfig) (string, error) {
	switch {
	case h.opts.DatabaseURL != "":
		if h.opts.DatabaseURL == cfg.DatabaseURL {
			return "", fmt.Errorf("harness: refusing to use the application database %q", cfg.DatabaseURL)
		}
		return h.opts.DatabaseURL, nil
	case cfg.TestDatabaseURL != "":
		return cfg.TestDatabaseURL, nil
	}
	dir, err := os.MkdirTemp("", "blogposts-harness-*")
	if err != nil {
		return "", fmt.Errorf("harness: temp dir: %w", err)
	}
	h.tmpDir = dir
	return "bolt://" + filepath.Join(dir, "test.db"), nil
}

func (h *Harness) removeTmpDir() {
	if h.tmpDir == "" {
		return
	}
	if err := os.RemoveAll(h.tmpDir); err != nil {
		utils.Sugar.Warnf("harness: remove %s: %v", h.tmpDir, err)
	}
	h.tmpDir = ""
}

// BeforeEach seeds the test database with generated posts.
func (h *Harness) BeforeEach(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.expect("BeforeEach", Running, TornDown); err != nil {
		return err
	}

	posts, err := fixtures.SeedPostData(ctx, h.app.Store(), h.seedCount)
	if err != nil {
		if derr := h.app.Store().DropAll(ctx); derr != nil {
			err = errors.Join(err, derr)
		}
		return fmt.Errorf("harness: seed: %w", err)
	}
	h.seeded = posts
	h.state = Seeded
	return nil
}

// Exercise marks the start of a test body.
func (h *Harness) Exercise() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.expect("Exercise", Seeded); err != nil {
		return err
	}
	h.state = Exercised
	return nil
}

// AfterEach drops the whole test database.
func (h *Harness) AfterEach(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.expect("AfterEach", Seeded, Exercised); err != nil {
		return err
	}
	if err := h.app.Store().DropAll(ctx); err != nil {
		return fmt.Errorf("harness: drop database: %w", err)
	}
	h.seeded = nil
	h.state = TornDown
	return nil
}

// AfterAll stops the server and closes the store. It may be called from any started state
// so a failed teardown never leaks the server.
func (h *Harness) AfterAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Stopped {
		return fmt.Errorf("%w: AfterAll while %s", ErrInvalidTransition, h.state)
	}
	err := h.app.Close(ctx)
	h.app = nil
	h.seeded = nil
	h.removeTmpDir()
	h.state = Stopped
	if err != nil {
		return fmt.Errorf("harness: stop server: %w", err)
	}
	return nil
}

// Store gives direct access to the store behind the server. It is nil while stopped.
func (h *Harness) Store() store.Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.app == nil {
		return nil
	}
	return h.app.Store()
}

// URL is the server base URL. It is empty while stopped.
func (h *Harness) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.app == nil {
		return ""
	}
	return h.app.URL()
}

// Seeded returns the posts inserted by the latest BeforeEach.
func (h *Harness) Seeded() []models.Post {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Post(nil), h.seeded...)
}
