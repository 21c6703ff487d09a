package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meshrelay/relay/internal/bridge"
	"github.com/meshrelay/relay/internal/config"
	"github.com/meshrelay/relay/internal/database"
	"github.com/meshrelay/relay/internal/logbuf"
	"github.com/meshrelay/relay/internal/metrics"
	"github.com/meshrelay/relay/internal/router"
	"github.com/meshrelay/relay/internal/server"
	"github.com/meshrelay/relay/internal/signaling"
	"github.com/meshrelay/relay/internal/store"
	"github.com/meshrelay/relay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logging; replaced with the ring-buffered logger once
	// the config is loaded.
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(bootLogger)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Every log record from here on is also retained in the ring for
	// the /logz endpoint.
	ring := logbuf.NewRing(cfg.LogBuffer.Capacity)
	logger := slog.New(logbuf.NewHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		ring,
		cfg.Instance.ID,
	))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Database pool, shared by the persistence writers and the
	// backplane. Optional: the relay is fully functional without it.
	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connected")
	}

	// Fanout bridge. Without it the instance serves its own
	// connections only.
	var br bridge.Bridge
	if cfg.Backplane.Enabled {
		br = bridge.NewPostgres(bridge.PostgresConfig{
			ReconnectBaseDelay: cfg.Backplane.ReconnectBaseDelay,
			ReconnectMaxDelay:  cfg.Backplane.ReconnectMaxDelay,
		}, pool, logger.With(logbuf.CategoryKey, "bridge"))
		defer br.Close()
	}

	exts := &router.ExtensionSet{}

	if cfg.Signaling.Enabled {
		exts.Register(signaling.NewManager(logger.With(logbuf.CategoryKey, "signaling")))
	}

	// Write-behind persistence: recorder extension feeding batch
	// writers through bounded buffers.
	var messageWriter *store.MessageWriter
	var connWriter *store.ConnectionWriter
	if pool != nil {
		writerCfg := store.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
			BufferSize:    cfg.Writers.BufferSize,
		}
		storeLogger := logger.With(logbuf.CategoryKey, "store")

		messages := store.NewBuffer[store.MessageRecord](writerCfg.BufferSize)
		conns := store.NewBuffer[store.ConnRecord](writerCfg.BufferSize)
		messageWriter = store.NewMessageWriter(writerCfg, messages, pool, storeLogger)
		connWriter = store.NewConnectionWriter(writerCfg, conns, pool, storeLogger)

		if err := messageWriter.Start(ctx); err != nil {
			logger.Error("failed to start message writer", "error", err)
			os.Exit(1)
		}
		if err := connWriter.Start(ctx); err != nil {
			logger.Error("failed to start connection writer", "error", err)
			os.Exit(1)
		}

		exts.Register(store.NewRecorder(cfg.Instance.ID, messages, conns, storeLogger))
	}

	rt := router.New(router.Config{
		InstanceID:    cfg.Instance.ID,
		BridgeChannel: cfg.Backplane.Channel,
	}, br, exts, logger.With(logbuf.CategoryKey, "router"))

	if err := rt.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	reporter := metrics.NewReporter(cfg.Metrics.ReportInterval, rt,
		logger.With(logbuf.CategoryKey, "metrics"))
	reporter.Start(ctx)

	// Transport and observability share one HTTP listener.
	ws := server.New(server.Config{
		WriteWait:      cfg.Server.WriteWait,
		PongWait:       cfg.Server.PongWait,
		PingInterval:   cfg.Server.PingInterval,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		SendBufferSize: cfg.Server.SendBufferSize,
	}, rt, signaling.ICEServers(cfg.Signaling.ICEServers),
		logger.With(logbuf.CategoryKey, "server"))

	handlers := metrics.NewHandlers(cfg.Instance.ID, rt, ring,
		logger.With(logbuf.CategoryKey, "metrics"))
	if messageWriter != nil {
		handlers.AddWriter("messages", messageWriter.Stats)
		handlers.AddWriter("connections", connWriter.Stats)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.HandleWS)
	handlers.Mount(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("relay running",
		"instance_id", cfg.Instance.ID,
		"backplane", br != nil,
		"signaling", cfg.Signaling.Enabled,
		"persistence", pool != nil,
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	httpServer.Shutdown(shutdownCtx)
	ws.Shutdown(shutdownCtx)
	reporter.Stop(shutdownCtx)
	rt.Stop(shutdownCtx)
	if messageWriter != nil {
		messageWriter.Stop(shutdownCtx)
		connWriter.Stop(shutdownCtx)
	}

	logger.Info("relay stopped")
}
