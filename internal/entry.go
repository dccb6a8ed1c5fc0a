// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/archive"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/metacache"
	"github.com/starford/raido/internal/metaloader"
	"github.com/starford/raido/internal/metawatch"
	"github.com/starford/raido/internal/metrics"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/pipeline"
	"github.com/starford/raido/internal/relayservice"
	"github.com/starford/raido/internal/source"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/transport"
)

const shutdownTimeout = 10 * time.Second

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// stdout carries the MCP stream when it is enabled.
	var logOut io.Writer = os.Stdout
	if cfg.MCP.Enabled {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Sampler.Source),
		slog.String("transport", string(cfg.Transport.Kind)),
		slog.String("transport_path", cfg.Transport.Path),
		slog.String("archive_path", cfg.Archive.Path),
		slog.Duration("period", cfg.Sampler.Period),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := source.LoadReplay(cfg.Sampler.Source)
	if err != nil {
		return fmt.Errorf("init source: %w", err)
	}

	tr, err := transport.Open(cfg.Transport.Kind, cfg.Transport.Path, cfg.Transport.Capacity)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}

	var db *archive.DB
	if cfg.Archive.Enabled() {
		db, err = archive.Open(cfg.Archive.Path, cfg.Archive.Interval)
		if err != nil {
			tr.Close()
			return fmt.Errorf("init archive: %w", err)
		}
		defer db.Close()
	}

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	pcfg := pipeline.Config{
		Source:        src,
		Transport:     tr,
		Logger:        logger,
		CacheCapacity: cfg.Metadata.Capacity,
		QueueSize:     cfg.Metadata.QueueSize,
		Fields:        cfg.Metadata.Fields,
		FetchAI:       cfg.Sampler.FetchAI,
		FetchAIInfo:   cfg.Sampler.FetchAIInfo,
		Verbose:       cfg.App.Verbose,
		OnPublish:     []func(models.Snapshot){broker.PublishSnapshot},
		OnLoad: []func(metaloader.Event){func(ev metaloader.Event) {
			if !ev.Stale {
				broker.PublishMetadata(ev.Path, ev.Found)
			}
		}},
		OnEvict: []func(metacache.Key){func(k metacache.Key) {
			logger.Debug("metacache: evicted", slog.String("key", string(k)))
			broker.PublishEvicted(string(k))
		}},
		OnTerminated: []func(){broker.PublishTerminated},
	}
	if db != nil {
		pcfg.OnPublish = append(pcfg.OnPublish, func(s models.Snapshot) { db.Offer(s) })
		pcfg.OnLoad = append(pcfg.OnLoad, func(ev metaloader.Event) {
			if ev.Stale {
				return
			}
			if err := db.RecordModel(ev.Path, ev.Found); err != nil {
				logger.Warn("archive: record model failed", slog.String("error", err.Error()))
			}
		})
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		tr.Close()
		return fmt.Errorf("init pipeline: %w", err)
	}

	svc := relayservice.NewService(p, db)

	g, gCtx := errgroup.WithContext(ctx)
	sampleCtx, stopSampling := context.WithCancel(gCtx)
	defer stopSampling()

	// Sampling loop.
	samplerDone := make(chan struct{})
	g.Go(func() error {
		defer close(samplerDone)
		return p.Run(sampleCtx, cfg.Sampler.Period)
	})

	if db != nil {
		g.Go(func() error {
			return db.Run(gCtx, logger)
		})
	}

	if len(cfg.Metadata.WatchDirs) > 0 {
		g.Go(func() error {
			err := metawatch.Watch(gCtx, cfg.Metadata.WatchDirs, p.Cache(), logger, func(path string) {
				logger.Debug("metawatch: invalidated", slog.String("path", path))
			})
			if err != nil {
				logger.Warn("metawatch: stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: newRouter(cfg, svc, broker, metrics.Handler(metrics.NewRegistry(p.Stats))),
		}
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	if cfg.MCP.Enabled {
		srv := mcpserver.New(svc, app.version)
		g.Go(func() error {
			logger.Info("Starting MCP server on stdio")
			if err := srv.Serve(gCtx, os.Stdin, os.Stdout); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals. The sampler stops first so the final frame
	// carries the last sampled snapshot.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		stopSampling()
		<-samplerDone

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := p.Shutdown(shutdownCtx); err != nil {
			logger.Error("Pipeline shutdown error", slog.String("error", err.Error()))
		}
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Relay stopped successfully")
	return nil
}

// errShutdown cancels the group once shutdown has finished so the remaining
// goroutines return.
var errShutdown = errors.New("shutdown")

func newRouter(cfg *Config, svc *relayservice.Service, broker *sse.Broker, metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.Snapshot(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"waiting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", metricsHandler)
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	return r
}
