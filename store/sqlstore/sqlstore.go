// Package sqlstore keeps posts in a MySQL table through gorm.
package sqlstore

import (
	"context"
	"errors"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

var _ store.Store = (*Store)(nil)

type authorColumns struct {
	FirstName string `gorm:"size:128;not null"`
	LastName  string `gorm:"size:128;not null"`
}

// postRow is the table shape of a post. The author is flattened into author_* columns.
type postRow struct {
	ID      string        `gorm:"primaryKey;size:36"`
	Title   string        `gorm:"size:255;not null"`
	Content string        `gorm:"type:text;not null"`
	Author  authorColumns `gorm:"embedded;embeddedPrefix:author_"`
	Created time.Time     `gorm:"precision:3;not null;index"`
}

func (postRow) TableName() string { return "posts" }

func (r postRow) post() models.Post {
	return models.Post{
		ID:      r.ID,
		Title:   r.Title,
		Content: r.Content,
		Author:  models.Author{FirstName: r.Author.FirstName, LastName: r.Author.LastName},
		Created: models.Timestamp(r.Created),
	}
}

// Options tune the gorm connection.
type Options struct {
	// LogLevel follows the application level names (debug, info, warn, error, silent).
	LogLevel string
	Logger   *zap.Logger
}

// Store is a store.Store backed by gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to a MySQL DSN such as "user:pass@tcp(127.0.0.1:3306)/blog?parseTime=True".
// The DSN always gets parseTime=true so DATETIME columns scan into time.Time.
func Open(dsn string, opts Options) (*Store, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, store.Wrap("open", err)
	}
	return OpenDialector(mysql.Open(normalized), opts)
}

// NormalizeDSN forces parseTime on and defaults the connection location to UTC.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// OpenDialector connects through any gorm dialector and creates the posts table if missing.
func OpenDialector(d gorm.Dialector, opts Options) (*Store, error) {
	l := opts.Logger
	if l == nil {
		l = zap.NewNop()
	}
	gLogger := logger.New(
		zap.NewStdLog(l),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(opts.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(d, &gorm.Config{Logger: gLogger})
	if err != nil {
		return nil, store.Wrap("open", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, store.Wrap("open", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if !db.Migrator().HasTable(&postRow{}) {
		if err := db.AutoMigrate(&postRow{}); err != nil {
			return nil, store.Wrap("open", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

func (s *Store) InsertMany(ctx context.Context, posts []models.PostInput) ([]models.Post, error) {
	inputs, err := store.PrepareInsert(posts, s.now())
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return []models.Post{}, nil
	}

	rows := make([]postRow, len(inputs))
	stored := make([]models.Post, len(inputs))
	for i, in := range inputs {
		rows[i] = postRow{
			ID:      uuid.NewString(),
			Title:   in.Title,
			Content: in.Content,
			Author:  authorColumns{FirstName: in.Author.FirstName, LastName: in.Author.LastName},
			Created: in.Created,
		}
		stored[i] = rows[i].post()
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, store.Wrap("insert", err)
	}
	return stored, nil
}

func (s *Store) FindAll(ctx context.Context) ([]models.Post, error) {
	var rows []postRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, store.Wrap("find all", err)
	}
	posts := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.post())
	}
	return posts, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (models.Post, bool, error) {
	var row postRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, false, nil
	}
	if err != nil {
		return models.Post{}, false, store.Wrap("find", err)
	}
	return row.post(), true, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&postRow{}).Count(&n).Error
	return n, store.Wrap("count", err)
}

func (s *Store) UpdateByID(ctx context.Context, id string, patch models.PostPatch) error {
	if err := store.PreparePatch(patch); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// MySQL reports changed rows, not matched rows, so existence is checked explicitly.
		var row postRow
		if err := tx.Select("id").Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		changes := map[string]interface{}{}
		if patch.Title != nil {
			changes["title"] = *patch.Title
		}
		if patch.Content != nil {
			changes["content"] = *patch.Content
		}
		if patch.Author != nil {
			changes["author_first_name"] = patch.Author.FirstName
			changes["author_last_name"] = patch.Author.LastName
		}
		if len(changes) == 0 {
			return nil
		}
		return tx.Model(&postRow{}).Where("id = ?", id).Updates(changes).Error
	})
	return store.Wrap("update", err)
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&postRow{})
	if res.Error != nil {
		return store.Wrap("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DropAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&postRow{}).Error
	return store.Wrap("drop", err)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.Wrap("close", err)
	}
	return store.Wrap("close", sqlDB.Close())
}
