package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/otruyen/otruyen-api/internal/api"
	"github.com/otruyen/otruyen-api/internal/catalog"
	"github.com/otruyen/otruyen-api/internal/config"
	"github.com/otruyen/otruyen-api/internal/converter"
	"github.com/otruyen/otruyen-api/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().String("fixtures", "", "Serve items from a JSON file instead of Firebase")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	global, err := readGlobalOptions(cmd)
	if err != nil {
		return err
	}
	loader := config.NewLoader(global.ConfigPath)
	if fixtures, _ := cmd.Flags().GetString("fixtures"); fixtures != "" {
		loader.Set("store.fixtures", fixtures)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		loader.Set("server.addr", addr)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger := global.logger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	if f := loader.File(); f != "" {
		logger.Info("configuration loaded", "file", f)
	}
	if !logger.Enabled(cmd.Context(), slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	loader.Watch(logger, func(next *config.Config) {
		app.pipeline.SetFilter(boilerplateFilter(next))
		logger.Info("boilerplate filter reloaded",
			"title_keywords", len(next.Reader.Boilerplate.TitleKeywords),
			"href_patterns", len(next.Reader.Boilerplate.HrefPatterns))
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.server.Run(ctx)
}

// app is the wired service: store, reading pipeline and HTTP server.
type app struct {
	server   *api.Server
	pipeline *converter.Pipeline
	closers  []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	st, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	metrics := api.NewMetrics()
	pipeline, err := converter.NewPipeline(converter.Options{
		Filter:        boilerplateFilter(cfg),
		CacheEntries:  cfg.Reader.CacheEntries,
		Logger:        logger.With("component", "reader"),
		ObserveRender: metrics.ObserveRender,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create reader: %w", err)
	}
	if cache := pipeline.Cache(); cache != nil {
		metrics.WatchCache(cache)
	}
	a.pipeline = pipeline

	library := catalog.NewService(st, catalog.Config{
		MediaRoot:      cfg.Media.Root,
		EbooksSubpath:  cfg.Media.EbooksSubpath,
		MediaBaseURL:   cfg.Media.BaseURL,
		CDNImageDomain: cfg.Media.CDNImageDomain,
		ItemsPerPage:   cfg.Catalog.ItemsPerPage,
		HomeWindow:     cfg.Catalog.HomeWindow,
	}, logger.With("component", "catalog"))

	a.server = api.NewServer(library, pipeline, api.Options{
		Addr:            cfg.Server.Addr,
		FrontendDomain:  cfg.Server.FrontendDomain,
		CDNImageDomain:  cfg.Media.CDNImageDomain,
		EbooksSubpath:   cfg.Media.EbooksSubpath,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		CoverWidth:      cfg.Reader.CoverWidth,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger.With("component", "http"),
		Metrics:         metrics,
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var st store.Store
	if cfg.Store.Fixtures != "" {
		mem, err := store.LoadMemoryStore(cfg.Store.Fixtures)
		if err != nil {
			return nil, err
		}
		logger.Info("serving fixtures", "file", cfg.Store.Fixtures, "items", mem.Len())
		st = mem
	} else {
		fb, err := store.NewFirebaseStore(store.FirebaseConfig{
			DatabaseURL: cfg.Store.DatabaseURL,
			RootNode:    cfg.Store.RootNode,
			AuthToken:   cfg.Store.AuthToken,
			Timeout:     cfg.Store.Timeout,
			Retries:     cfg.Store.Retries,
		}, logger.With("component", "firebase"))
		if err != nil {
			return nil, err
		}
		st = fb
	}

	if cfg.Redis.Addr == "" {
		return st, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, reads fall through to the store", "addr", cfg.Redis.Addr, "error", err)
	}
	return store.NewRedisCache(st, client, cfg.Redis.TTL, logger.With("component", "redis")), nil
}

// Close releases the connections opened by newApp.
func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

func boilerplateFilter(cfg *config.Config) *converter.BoilerplateFilter {
	b := cfg.Reader.Boilerplate
	return converter.NewBoilerplateFilter(b.TitleKeywords, b.HrefPatterns)
}
