// Package api serves the library and the EPUB reader over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/otruyen/otruyen-api/internal/catalog"
	"github.com/otruyen/otruyen-api/internal/converter"
)

// Library is the catalog the handlers query.
type Library interface {
	Home(ctx context.Context, page int) (catalog.Page, error)
	List(ctx context.Context, typeSlug string, page int) (catalog.Page, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	ByCategory(ctx context.Context, slug string, page int) (catalog.Page, error)
	Search(ctx context.Context, keyword string, page int) (catalog.Page, error)
	Detail(ctx context.Context, slugOrID string) (catalog.Item, error)
	TextStory(ctx context.Context, slugOrID string, toc catalog.TOCReader) (*catalog.TextStory, error)
	Ebook(ctx context.Context, slugOrID string) (*catalog.Ebook, error)
	MediaPath(slug, filename string) (string, error)
}

// Reader renders EPUB files.
type Reader interface {
	TableOfContents(path string) (*converter.TableOfContents, error)
	Chapter(path string, number int) (*converter.Chapter, error)
	Cover(path string, width int) (converter.Thumbnail, error)
	Resource(path, name string) ([]byte, string, error)
}

// Options configures the server.
type Options struct {
	Addr           string
	FrontendDomain string
	CDNImageDomain string
	EbooksSubpath  string
	CORSOrigins    []string
	// RateLimit is the per-client request rate in requests per second; 0
	// disables limiting.
	RateLimit float64
	RateBurst int
	// CoverWidth is the cover thumbnail width when the request names none.
	CoverWidth      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Metrics is optional; /metrics is only served when set.
	Metrics *Metrics
}

// Server is the HTTP API.
type Server struct {
	library Library
	reader  Reader
	opts    Options
	logger  *slog.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer builds the router for library and reader.
func NewServer(library Library, reader Reader, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.EbooksSubpath == "" {
		opts.EbooksSubpath = "ebooks"
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		library: library,
		reader:  reader,
		opts:    opts,
		logger:  opts.Logger,
		router:  gin.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(s.recovered))
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	if s.opts.Metrics != nil {
		s.router.Use(s.opts.Metrics.middleware())
	}

	corsConfig := cors.DefaultConfig()
	if len(s.opts.CORSOrigins) == 1 && s.opts.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.opts.CORSOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	s.router.Use(cors.New(corsConfig))

	if s.opts.RateLimit > 0 {
		s.router.Use(s.rateLimitMiddleware(newClientLimiter(s.opts.RateLimit, s.opts.RateBurst)))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.index)
	s.router.GET("/health", s.health)
	if s.opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	v1 := s.router.Group("/v1/api")
	{
		v1.GET("/home", s.home)
		v1.GET("/danh-sach/:type", s.list)
		v1.GET("/the-loai", s.categories)
		v1.GET("/the-loai/:slug", s.byCategory)
		v1.GET("/truyen-tranh/:slug", s.detail)
		v1.GET("/tim-kiem", s.search)

		story := v1.Group("/truyen-chu/:slug")
		{
			story.GET("", s.textStory)
			story.GET("/muc-luc", s.storyTOC)
			story.GET("/chuong/:number", s.storyChapter)
			story.GET("/cover", s.cover)
			story.GET("/tai-nguyen/*part", s.resource)
		}
	}

	s.router.GET("/table-of-contents", s.tableOfContents)
	s.router.GET("/chapter", s.chapter)

	sub := strings.Trim(s.opts.EbooksSubpath, "/")
	s.router.GET("/"+sub+"/:slug/*filename", s.media)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("Không tìm thấy endpoint", ""))
	})
}

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", s.opts.Addr, "mode", gin.Mode())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) recovered(c *gin.Context, v any) {
	s.logger.Error("panic while serving request",
		"path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "panic", v)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Lỗi server nội bộ", "internal"))
}
