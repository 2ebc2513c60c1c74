package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"

	"github.com/samirrijal/soundlines/internal/adapters/http"
	natsadapter "github.com/samirrijal/soundlines/internal/adapters/nats"
	"github.com/samirrijal/soundlines/internal/adapters/postgres"
	"github.com/samirrijal/soundlines/internal/adapters/valkey"
	"github.com/samirrijal/soundlines/internal/core/fetch"
	"github.com/samirrijal/soundlines/internal/core/ports"
	"github.com/samirrijal/soundlines/internal/core/usecases"
	"github.com/samirrijal/soundlines/internal/pkg/geospatial"
	"github.com/samirrijal/soundlines/internal/pkg/telemetry"
)

func commandServe(c *cli.Context) error {
	cfg, err := loadConfig(c, "soundlines")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.Enabled)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	// Database: connected by the fetch worker on its first request
	source := postgres.NewSource(cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.QueryTimeout)
	defer source.Close()

	// Cache
	var cacheSvc ports.CacheService
	var cache *valkey.Cache
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer cache.Close()
			cacheSvc = cache
		}
	}
	cached := usecases.NewCachedSource(source, cacheSvc, cfg.Valkey.TTL)

	// NATS
	var publisher ports.SnapshotPublisher
	var subscriber *natsadapter.Subscriber
	var wsConn *nats.Conn
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		subscriber, err = natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats refresh subscriber unavailable", "error", err)
		} else {
			defer subscriber.Close()
		}

		// Raw NATS connection for WebSocket relay
		wsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer wsConn.Close()
		}
	}

	// Owning side and worker
	client := fetch.NewClient(cached,
		fetch.WithLogger(slog.Default()),
		fetch.WithFetchTimeout(cfg.Database.QueryTimeout),
	)
	viewer := usecases.NewViewerService(client, publisher, cached, usecases.ViewerConfig{
		TickInterval:    cfg.Viewer.TickInterval(),
		RefreshInterval: cfg.Viewer.RefreshInterval,
		ShutdownTimeout: cfg.Viewer.ShutdownTimeout,
	})

	if subscriber != nil {
		if err := subscriber.SubscribeRefresh(ctx, viewer.Refresh); err != nil {
			slog.Warn("refresh subscription failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Viewer: viewer,
		Viewport: geospatial.Viewport{
			Left:   cfg.Viewport.GeoLeft,
			Top:    cfg.Viewport.GeoTop,
			Right:  cfg.Viewport.GeoRight,
			Bottom: cfg.Viewport.GeoBottom,
			Width:  cfg.Viewport.Width,
			Height: cfg.Viewport.Height,
		},
		MaxEntities: cfg.Viewer.MaxEntities,
		Source:      source,
		NATS:        wsConn,
		Cache:       cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             1024 * 1024, // 1 MB max request body
		AppName:               "Soundlines Viewer",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))
	http.SetupRoutes(app, deps)

	viewerDone := make(chan error, 1)
	go func() {
		viewerDone <- viewer.Run(ctx)
	}()

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		listenErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	case err := <-listenErr:
		slog.Error("listen failed", "error", err)
		stop()
	}

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// The worker must be gone before the source is closed by the deferred Close.
	if err := <-viewerDone; err != nil {
		slog.Error("viewer shutdown incomplete", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
