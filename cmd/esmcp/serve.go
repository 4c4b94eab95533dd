package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/inbound/mcphttp"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/inbound/mcpserver"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/es7"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/es8"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/memrepo"
	"github.com/silbaram/elasticsearch-mcp-server/internal/telemetry"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// engineFactories maps each supported engine major to its adapter.
var engineFactories = map[int]usecase.EngineFactory{
	7: es7.NewEngine,
	8: es8.NewEngine,
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the engine and serve MCP tools",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("config", "", "Path to the YAML config file (overrides ESMCP_CONFIG_FILE)")
	cmd.Flags().String("transport", mcpserver.TransportStdio, fmt.Sprintf("MCP transport: one of %v", mcpserver.Transports))
	cmd.Flags().String("listen", "", "Listen address for the sse and http transports (overrides ESMCP_LISTEN_ADDR)")
	cmd.Flags().String("engine-version", "", "Engine release to target, e.g. 7.17.0 (overrides elasticsearch.version)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	// === Logging ===
	logger, closeLog := newLogger(cfg, cmd.ErrOrStderr())
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()), slog.String("transport", cfg.Transport))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === OpenTelemetry ===
	shutdownOtel, err := telemetry.InitProvider(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Engine ===
	engine, info, err := usecase.NewResolveEngineUseCase(engineFactories, logger).Execute(ctx, cfg.Elasticsearch)
	if err != nil {
		if errors.Is(err, usecase.ErrUnsupportedEngine) {
			return exitError(exitUnsupported, "%v", err)
		}
		return exitError(exitUnreachable, "%v", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("Failed to close engine adapter.", slog.Any("error", err))
		}
	}()

	// === Tools and dispatch ===
	registry := memrepo.NewInMemoryToolRegistry(logger)
	if err := usecase.NewRegisterToolsUseCase(registry, logger).Execute(ctx, usecase.Catalog()); err != nil {
		return fmt.Errorf("registering tool catalog: %w", err)
	}
	metrics, err := telemetry.NewDispatchMetrics(otel.GetMeterProvider().Meter(telemetry.ServiceName), logger)
	if err != nil {
		return fmt.Errorf("initializing dispatch metrics: %w", err)
	}
	dispatcher := usecase.NewDispatcher(registry, engine, cfg.Elasticsearch.RequestTimeout, metrics, logger)

	serveTools := usecase.NewServeToolsUseCase(registry, logger)
	tools, err := serveTools.Execute(ctx)
	if err != nil {
		return err
	}
	mcpSrv := mcpserver.NewServer(version)
	if err := mcpserver.NewBinding(dispatcher, logger).Register(mcpSrv, tools); err != nil {
		return fmt.Errorf("registering MCP tools: %w", err)
	}

	// === Servers ===
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Transport != mcpserver.TransportStdio && cfg.AdminAddr != "" {
		adminMux := http.NewServeMux()
		mcphttp.NewHandlers(serveTools, engine, info, logger).RegisterAdminRoutes(adminMux)
		adminServer := &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      adminMux,
			ReadTimeout:  cfg.ServerReadTimeout,
			WriteTimeout: cfg.ServerWriteTimeout,
			IdleTimeout:  cfg.ServerIdleTimeout,
		}
		g.Go(func() error {
			logger.Info("Admin HTTP server starting.", slog.String("address", adminServer.Addr))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := adminServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Admin HTTP server graceful shutdown failed.", slog.Any("error", err))
			}
			return nil
		})
	}
	g.Go(func() error {
		// A closed stdin ends the session; take the admin server down with it.
		defer stop()
		return mcpserver.Run(gctx, mcpSrv, mcpserver.TransportOptions{
			Kind:            cfg.Transport,
			ListenAddr:      cfg.ListenAddr,
			BaseURL:         cfg.BaseURL,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Stdin:           cmd.InOrStdin(),
			Stdout:          cmd.OutOrStdout(),
		}, logger)
	})

	if err := g.Wait(); err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	logger.Info("Servers shut down gracefully.")
	return nil
}

// loadServeConfig loads the environment and file configuration and applies flag overrides.
func loadServeConfig(cmd *cobra.Command) (*configs.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("ESMCP_CONFIG_FILE", path); err != nil {
			return nil, exitError(exitConfig, "setting config path: %v", err)
		}
	}
	cfg, err := configs.Load()
	if err != nil {
		return nil, exitError(exitConfig, "failed to load config: %v", err)
	}

	if cmd.Flags().Changed("transport") {
		cfg.Transport, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("engine-version") {
		cfg.Elasticsearch.Version, _ = cmd.Flags().GetString("engine-version")
	}
	if !slices.Contains(mcpserver.Transports, cfg.Transport) {
		return nil, exitError(exitConfig, "unknown transport %q (want one of %v)", cfg.Transport, mcpserver.Transports)
	}
	return cfg, nil
}

// newLogger writes to stderr, except in stdio mode where stdout and stdin carry
// the protocol and logs go to cfg.LogFile.
func newLogger(cfg *configs.Config, stderr io.Writer) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}
	if cfg.Transport != mcpserver.TransportStdio {
		return slog.New(slog.NewTextHandler(stderr, opts)), func() {}
	}
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Fall back to discard if can't open log file
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	return slog.New(slog.NewTextHandler(logFile, opts)), func() { _ = logFile.Close() }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
