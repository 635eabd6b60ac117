// Command edlengine wires the EDL rendering core into a resident process:
// it constructs the store, broadcaster, optional durable backends and the
// service facade, binds them onto internal/httpapi's routes, and blocks
// until told to stop. cmd/edlctl is a thin client of this process for the
// stateful operations (edl-update, edl-render, subscribe); the abstract
// operation set (UpdateEdl, RenderEdlWindow, Subscribe, LoadFile) gets
// plain HTTP+JSON as its one concrete binding, since no RPC framework is
// part of the wired stack.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/internal/config"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/internal/httpapi"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/internal/observability"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/archive"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/events"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/medialib"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/service"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/store"
)

func main() {
	os.Exit(Run())
}

// Run builds the process and blocks until a shutdown signal arrives. It
// returns the process exit code.
func Run() int {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("could not create output directory", "path", cfg.OutputDir, "error", err)
		return 1
	}

	svcCfg := service.Config{
		Store:  store.New(),
		Events: events.NewBroadcaster(),
		Logger: logger,
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	if cfg.CatalogDSN != "" {
		db, err := sql.Open("postgres", cfg.CatalogDSN)
		if err != nil {
			logger.Error("could not open media catalog", "error", err)
			return 1
		}
		closers = append(closers, func() { db.Close() })
		if err := db.PingContext(ctx); err != nil {
			logger.Error("media catalog unreachable", "error", err)
			return 1
		}
		logger.Info("media catalog: connected")
		svcCfg.Catalog = medialib.NewCatalog(db)
	}

	if cfg.RenderLogPath != "" {
		rl, err := medialib.OpenRenderLog(cfg.RenderLogPath)
		if err != nil {
			logger.Error("could not open render log", "error", err)
			return 1
		}
		closers = append(closers, func() { rl.Close() })
		svcCfg.RenderLog = rl
		logger.Info("render log: ready", "path", cfg.RenderLogPath)
	}

	if cfg.S3Bucket != "" {
		arc, err := archive.NewS3Archive(ctx, archive.Config{Bucket: cfg.S3Bucket, Prefix: "renders/"})
		if err != nil {
			logger.Error("could not init archive", "error", err)
			return 1
		}
		svcCfg.Archive = arc
		logger.Info("archive: ready", "bucket", cfg.S3Bucket)
	}

	var relay *events.RedisRelay
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { client.Close() })
		relay = events.NewRedisRelay(client, cfg.RedisChannel, logger)
		relayCtx, cancelRelay := context.WithCancel(ctx)
		closers = append(closers, cancelRelay)
		go func() {
			if err := relay.Relay(relayCtx, svcCfg.Events); err != nil && relayCtx.Err() == nil {
				logger.Warn("redis relay stopped", "error", err)
			}
		}()
		logger.Info("redis relay: ready", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = true
	provider, err := observability.New(ctx, obsCfg)
	if err != nil {
		logger.Error("could not init observability", "error", err)
		return 1
	}
	closers = append(closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("observability shutdown", "error", err)
		}
	})
	svcCfg.Observer = provider

	facade := service.New(svcCfg)

	if relay != nil {
		svcCfg.Events.Subscribe(events.SubscriberFunc(func(e events.EngineEvent) error {
			return relay.Publish(ctx, e)
		}))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	httpapi.New(facade, logger).Mount(mux)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Info("http api: ready", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http api failed", "error", err)
		}
	}()
	closers = append(closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	logger.Info("edlengine ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("edlengine shutting down")
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
