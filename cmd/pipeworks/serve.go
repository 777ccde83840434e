package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/engine"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/ledger"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/mcp"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/world"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}
	// Stdout carries the MCP transport.
	logger := newLogger(cfg.Log, os.Stderr)

	registry := world.NewRegistry(cfg.Worlds, logger)
	if err := registry.Preload(); err != nil {
		return err
	}
	if err := registry.Watch(ctx); err != nil {
		logger.Warn("policy watcher disabled", "error", err)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(reg)),
	}
	if cfg.Ledger.Enabled {
		opts = append(opts, engine.WithLedger(ledger.New(cfg.Ledger.Dir, ledger.WithLockTimeout(cfg.Ledger.LockTimeout))))
	}
	eng := engine.New(registry, db, opts...)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("starting MCP server", "worlds", registry.WorldIDs(), "ledger", cfg.Ledger.Enabled)
	server := mcp.NewServer(eng, db, registry, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
