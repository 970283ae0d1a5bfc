package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/blogposts/fixtures"
	"github.com/cppla/blogposts/store"
	"github.com/cppla/blogposts/store/boltstore"
)

var envKeys = []string{
	"APP_PORT", "DATABASE_URL", "TEST_DATABASE_URL", "GIN_MODE", "GIN_PATH",
	"CORS_ALLOWED_ORIGINS", "REDIS_HOST", "REDIS_PASSWORD", "REDIS_PORT", "REDIS_DB",
	"CACHE_TTL_SECONDS", "LOG_LEVEL", "LOG_PATH", "LOG_COMPRESS", "LOG_MAX_SIZE_MB",
	"LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS", "RATE_LIMIT_PER_MINUTE", "SEED_COUNT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Parse(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "bolt://data/blog.db", c.DatabaseURL)
	assert.Empty(t, c.TestDatabaseURL)
	assert.Equal(t, "release", c.GinMode)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, 10, c.SeedCount)
	assert.Equal(t, 0, c.RateLimitPerMinute)
	assert.Equal(t, 6379, c.RedisPort)
	assert.Equal(t, 3600, c.CacheTTLSeconds)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.RedisEnabled())
}

func TestParse_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "RateLimitPerMinute": 120, "SeedCount": 3, "AllowedOrigins": ["http://a.test", "http://b.test"]},
		"database": {"URL": "mongodb://db:27017/blog", "TestURL": "mongodb://db:27017/blog_test"},
		"redis": {"RedisHost": "cache", "RedisPort": 6380, "RedisDB": 2, "CacheTTLSeconds": 60},
		"log": {"Level": "debug", "Path": "logs/app.log", "GinMode": "debug", "GinPath": "logs/gin.log", "MaxSizeMB": 5, "Compress": true}
	}`)

	c, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, 120, c.RateLimitPerMinute)
	assert.Equal(t, 3, c.SeedCount)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins)
	assert.Equal(t, "mongodb://db:27017/blog", c.DatabaseURL)
	assert.Equal(t, "mongodb://db:27017/blog_test", c.TestDatabaseURL)
	assert.True(t, c.RedisEnabled())
	assert.Equal(t, 6380, c.RedisPort)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, 60, c.CacheTTLSeconds)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "logs/gin.log", c.GinPath)
	assert.Equal(t, 5, c.LogMaxSizeMB)
	assert.Equal(t, 3, c.LogMaxBackups)
	assert.True(t, c.LogCompress)
}

func TestParse_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"app": {"AppPort": "9000"}, "database": {"URL": "bolt://file.db"}}`)
	t.Setenv("APP_PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://pg/blog")
	t.Setenv("TEST_DATABASE_URL", "postgres://pg/blog_test")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("SEED_COUNT", "25")

	c, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, "postgres://pg/blog", c.DatabaseURL)
	assert.Equal(t, "postgres://pg/blog_test", c.TestDatabaseURL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins)
	assert.Equal(t, 30, c.RateLimitPerMinute)
	assert.Equal(t, 25, c.SeedCount)
}

func TestParse_Errors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		clearEnv(t)
		_, err := Parse(writeConfig(t, `{"app": `))
		require.Error(t, err)
	})

	t.Run("invalid integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SEED_COUNT", "ten")
		_, err := Parse("")
		require.ErrorContains(t, err, "SEED_COUNT")
	})

	t.Run("test database equals database", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "bolt://same.db")
		t.Setenv("TEST_DATABASE_URL", "bolt://same.db")
		_, err := Parse("")
		require.Error(t, err)
	})
}

func TestOpenDatabase(t *testing.T) {
	ctx := context.Background()
	c := AppConfig{LogLevel: "info"}

	path := filepath.Join(t.TempDir(), "nested", "blog.db")
	s, err := OpenDatabase(ctx, c, "bolt://"+path, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &boltstore.Store{}, s)
	require.NoError(t, s.Close(ctx))
	assert.FileExists(t, path)

	_, err = OpenDatabase(ctx, c, "redis://localhost", zap.NewNop())
	assert.ErrorContains(t, err, "unsupported")

	_, err = OpenDatabase(ctx, c, "data/blog.db", zap.NewNop())
	assert.ErrorContains(t, err, "no scheme")
}

func TestOpenStore_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	s, closeFn, err := OpenStore(ctx, AppConfig{}, "bolt://"+filepath.Join(t.TempDir(), "blog.db"), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &boltstore.Store{}, s)
	require.NoError(t, closeFn(ctx))
}

func TestOpenStore_RedisNamespacedByURL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	c := AppConfig{RedisHost: mr.Host(), RedisPort: port, CacheTTLSeconds: 60}

	dir := t.TempDir()
	open := func(name string) store.Store {
		s, closeFn, err := OpenStore(ctx, c, "bolt://"+filepath.Join(dir, name+".db"), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, closeFn(ctx)) })
		return s
	}
	testDB := open("test")
	prodDB := open("prod")

	_, err = fixtures.SeedPostData(ctx, testDB, 10)
	require.NoError(t, err)

	posts, err := testDB.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 10)

	posts, err = prodDB.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	n, err := prodDB.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NotEqual(t, CacheNamespace("bolt://a.db"), CacheNamespace("bolt://b.db"))
	assert.Equal(t, CacheNamespace("bolt://a.db"), CacheNamespace("bolt://a.db"))
}
