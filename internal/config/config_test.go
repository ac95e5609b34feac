package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// isolate keeps the search path away from any real configuration.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "otruyen.yaml")
	writeFile(t, path, `
store:
  database_url: https://example-rtdb.firebaseio.com/
  timeout: 3s
server:
  addr: ":8080"
  rate_limit: 2.5
reader:
  boilerplate:
    title_keywords: ["Lời nói đầu", "preface"]
log:
  level: DEBUG
  format: JSON
`)

	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, path, loader.File())
	assert.Equal(t, "https://example-rtdb.firebaseio.com/", cfg.Store.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "library_items", cfg.Store.RootNode)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, []string{"Lời nói đầu", "preface"}, cfg.Reader.Boilerplate.TitleKeywords)
	assert.Equal(t, Default().Reader.Boilerplate.HrefPatterns, cfg.Reader.Boilerplate.HrefPatterns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 24, cfg.Catalog.ItemsPerPage)
	assert.Same(t, cfg, loader.Current())
}

func TestLoadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OTRUYEN_STORE_FIXTURES", "items.json")
	t.Setenv("OTRUYEN_STORE_TIMEOUT", "5s")
	t.Setenv("OTRUYEN_SERVER_ADDR", ":9000")
	t.Setenv("OTRUYEN_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("OTRUYEN_READER_BOILERPLATE_HREF_PATTERNS", "cover.html")
	t.Setenv("OTRUYEN_REDIS_ADDR", "localhost:6379")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "items.json", cfg.Store.Fixtures)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"cover.html"}, cfg.Reader.Boilerplate.HrefPatterns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
}

func TestSetOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OTRUYEN_SERVER_ADDR", ":9000")

	loader := NewLoader("")
	loader.Set("store.fixtures", "items.json")
	loader.Set("server.addr", ":7000")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "items.json", cfg.Store.Fixtures)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	t.Run("no store", func(t *testing.T) {
		_, err := NewLoader("").Load()
		assert.ErrorIs(t, err, ErrNoStore)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(dir, "absent.yaml")).Load()
		assert.Error(t, err)
	})

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "items per page", content: "catalog:\n  items_per_page: 0\n", field: "ItemsPerPage"},
		{name: "log format", content: "log:\n  format: yaml\n", field: "Format"},
		{name: "database url", content: "store:\n  database_url: not a url\n", field: "DatabaseURL"},
		{name: "redis address", content: "redis:\n  addr: nohost\n", field: "Addr"},
		{name: "cover width", content: "reader:\n  cover_width: 5000\n", field: "CoverWidth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTRUYEN_STORE_FIXTURES", "items.json")
			path := filepath.Join(dir, "invalid.yaml")
			writeFile(t, path, tt.content)
			_, err := NewLoader(path).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "otruyen.yaml")

	require.NoError(t, WriteDefault(path, false))
	assert.ErrorIs(t, WriteDefault(path, false), os.ErrExist)
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "OTRUYEN_SERVER_ADDR")
	assert.Contains(t, string(data), "timeout: 10s")

	t.Setenv("OTRUYEN_STORE_FIXTURES", "items.json")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	want := Default()
	want.Store.Fixtures = "items.json"
	assert.Equal(t, want, *cfg)
}

func TestWatch(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "otruyen.yaml")
	writeFile(t, path, "store:\n  fixtures: items.json\nreader:\n  boilerplate:\n    title_keywords: [before]\n")

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	changes := make(chan *Config, 16)
	loader.Watch(slog.New(slog.NewTextHandler(io.Discard, nil)), func(c *Config) { changes <- c })

	writeFile(t, path, "store:\n  fixtures: items.json\nreader:\n  boilerplate:\n    title_keywords: [after]\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if len(c.Reader.Boilerplate.TitleKeywords) == 1 && c.Reader.Boilerplate.TitleKeywords[0] == "after" {
				assert.Equal(t, []string{"after"}, loader.Current().Reader.Boilerplate.TitleKeywords)
				return
			}
		case <-deadline:
			t.Fatal("config change was not applied")
		}
	}
}

func TestWatchWithoutFile(t *testing.T) {
	isolate(t)
	t.Setenv("OTRUYEN_STORE_FIXTURES", "items.json")
	loader := NewLoader("")
	_, err := loader.Load()
	require.NoError(t, err)
	assert.Empty(t, loader.File())

	called := false
	loader.Watch(slog.New(slog.NewTextHandler(io.Discard, nil)), func(*Config) { called = true })
	assert.False(t, called)
}
