package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/otruyen/otruyen-api/internal/config"
	"github.com/otruyen/otruyen-api/internal/epubtest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func readGlobalOptionsForTest(t *testing.T, flagArgs ...string) (globalOptions, error) {
	t.Helper()
	cmd := newRootCmd()
	if err := cmd.ParseFlags(flagArgs); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return readGlobalOptions(cmd)
}

// runCLI executes the root command with HOME pointed at an empty
// directory so no real configuration is picked up.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeBook(t *testing.T) string {
	t.Helper()
	return epubtest.Book{
		Title: "Truyện Kiều",
		Chapters: []epubtest.Chapter{
			{ID: "toc", Href: "toc.html", Title: "Mục lục"},
			{ID: "c1", Href: "c1.html", Body: epubtest.XHTML("Hồi 1", "<h1>Hồi 1</h1><p>Trăm năm trong cõi người ta</p>")},
			{ID: "c2", Href: "c2.html", Title: "Hồi 2"},
		},
		NCX: []epubtest.NavPoint{
			{Label: "Mục lục", Src: "toc.html"},
			{Label: "Hồi 1", Src: "c1.html"},
			{Label: "Hồi 2", Src: "c2.html"},
		},
	}.Write(t, t.TempDir(), "truyen-kieu.epub")
}

func TestReadGlobalOptions_Defaults(t *testing.T) {
	opts, err := readGlobalOptionsForTest(t)
	if err != nil {
		t.Fatalf("readGlobalOptions() error = %v", err)
	}
	if opts.ConfigPath != "" || opts.LogLevel != "" || opts.LogFormat != "" || opts.Verbose {
		t.Fatalf("opts = %+v, want zero value", opts)
	}

	logger := opts.logger(&bytes.Buffer{}, "", "")
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadGlobalOptions_CustomFlags(t *testing.T) {
	opts, err := readGlobalOptionsForTest(t,
		"--config", "/etc/otruyen.yaml",
		"--log-level", "WARN",
		"--log-format", "json",
	)
	if err != nil {
		t.Fatalf("readGlobalOptions() error = %v", err)
	}
	if opts.ConfigPath != "/etc/otruyen.yaml" {
		t.Fatalf("ConfigPath = %q", opts.ConfigPath)
	}
	if opts.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want %q", opts.LogLevel, "warn")
	}
	if opts.LogFormat != "json" {
		t.Fatalf("LogFormat = %q, want %q", opts.LogFormat, "json")
	}
}

func TestReadGlobalOptions_InvalidLogLevel(t *testing.T) {
	_, err := readGlobalOptionsForTest(t, "--log-level", "trace")
	if err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Fatalf("expected log-level validation error, got %v", err)
	}
}

func TestReadGlobalOptions_InvalidLogFormat(t *testing.T) {
	_, err := readGlobalOptionsForTest(t, "--log-format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "--log-format") {
		t.Fatalf("expected log-format validation error, got %v", err)
	}
}

func TestLogger_FlagsOverrideConfig(t *testing.T) {
	opts, err := readGlobalOptionsForTest(t, "--log-level", "error")
	if err != nil {
		t.Fatalf("readGlobalOptions() error = %v", err)
	}
	logger := opts.logger(&bytes.Buffer{}, "debug", "text")
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("--log-level error should win over the configured debug level")
	}

	// --verbose overrides log-level to debug
	opts, err = readGlobalOptionsForTest(t, "--log-level", "error", "--verbose")
	if err != nil {
		t.Fatalf("readGlobalOptions() error = %v", err)
	}
	logger = opts.logger(&bytes.Buffer{}, "", "")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should be enabled at DEBUG level when --verbose is set")
	}
}

func TestBuildLogger_FormatNormalization(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "info", "JSON")
	logger.Info("test message")
	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("expected JSON output for format 'JSON', got: %s", output)
	}
}

func TestTOCCommand(t *testing.T) {
	path := writeBook(t)

	out, err := runCLI(t, "toc", path)
	if err != nil {
		t.Fatalf("toc error = %v", err)
	}
	if !strings.Contains(out, "Truyện Kiều (2 content chapters, 3 entries)") {
		t.Fatalf("missing summary line in:\n%s", out)
	}
	if strings.Contains(out, "Mục lục") {
		t.Fatalf("boilerplate entry listed in:\n%s", out)
	}
	if !strings.Contains(out, "Hồi 2") {
		t.Fatalf("missing chapter in:\n%s", out)
	}
}

func TestTOCCommand_JSON(t *testing.T) {
	path := writeBook(t)

	out, err := runCLI(t, "toc", "--json", path)
	if err != nil {
		t.Fatalf("toc --json error = %v", err)
	}
	var got struct {
		Title    string `json:"title"`
		Entries  int    `json:"entries"`
		Chapters []struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
		} `json:"chapters"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Title != "Truyện Kiều" || got.Entries != 3 || len(got.Chapters) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Chapters[0].Number != 1 || got.Chapters[0].Title != "Hồi 1" {
		t.Fatalf("first chapter = %+v", got.Chapters[0])
	}
}

func TestChapterCommand(t *testing.T) {
	path := writeBook(t)

	out, err := runCLI(t, "chapter", path, "1")
	if err != nil {
		t.Fatalf("chapter error = %v", err)
	}
	if !strings.HasPrefix(out, "1/2 Hồi 1") {
		t.Fatalf("unexpected header in:\n%s", out)
	}
	if !strings.Contains(out, "Trăm năm trong cõi người ta") {
		t.Fatalf("missing chapter text in:\n%s", out)
	}

	out, err = runCLI(t, "chapter", "--html", path, "1")
	if err != nil {
		t.Fatalf("chapter --html error = %v", err)
	}
	if !strings.Contains(out, "<p>") {
		t.Fatalf("expected markup in:\n%s", out)
	}
}

func TestChapterCommand_Errors(t *testing.T) {
	path := writeBook(t)

	if _, err := runCLI(t, "chapter", path, "one"); err == nil || !strings.Contains(err.Error(), "integer") {
		t.Fatalf("expected number error, got %v", err)
	}
	if _, err := runCLI(t, "chapter", path, "3"); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := runCLI(t, "chapter", filepath.Join(t.TempDir(), "absent.epub"), "1"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otruyen.yaml")

	out, err := runCLI(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "items_per_page: 24") {
		t.Fatalf("defaults missing from:\n%s", data)
	}

	if _, err := runCLI(t, "config", "init", path); err == nil {
		t.Fatal("expected error when the file exists")
	}
	if _, err := runCLI(t, "config", "init", "--force", path); err != nil {
		t.Fatalf("config init --force error = %v", err)
	}
}

func TestNewAppWithFixtures(t *testing.T) {
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "items.json")
	data := `{
		"comic_one-piece": {"name": "One Piece", "slug": "one-piece", "itemType": "comic", "createdAt": "2024-03-01"},
		"ebook_truyen-kieu": {"name": "Truyện Kiều", "slug": "truyen-kieu", "itemType": "ebook", "createdAt": "2024-02-01"}
	}`
	if err := os.WriteFile(fixtures, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := config.Default()
	cfg.Store.Fixtures = fixtures
	cfg.Media.Root = dir
	a, err := newApp(context.Background(), &cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api/home", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var body struct {
		Status string `json:"status"`
		Data   struct {
			Items []struct {
				Slug string `json:"slug"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "success" || len(body.Data.Items) != 2 || body.Data.Items[0].Slug != "one-piece" {
		t.Fatalf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "otruyen_archive_cache_entries") {
		t.Fatal("archive cache metrics not registered")
	}
}

func TestNewAppMissingFixtures(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Fixtures = filepath.Join(t.TempDir(), "absent.json")
	if _, err := newApp(context.Background(), &cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))); err == nil {
		t.Fatal("expected error for missing fixtures")
	}
}
