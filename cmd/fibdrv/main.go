// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Fibdrv serves the Fibonacci pseudo-device. It mounts the device node
// and its latency attribute over FUSE, serves the same device on a Unix
// socket, and optionally exposes Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/fibdrv/lib/config"
	"github.com/bureau-foundation/fibdrv/lib/fibdev"
	fibfuse "github.com/bureau-foundation/fibdrv/lib/fibdev/fuse"
	"github.com/bureau-foundation/fibdrv/lib/fibonacci"
	"github.com/bureau-foundation/fibdrv/lib/fibservice"
	"github.com/bureau-foundation/fibdrv/lib/process"
	"github.com/bureau-foundation/fibdrv/lib/service"
	"github.com/bureau-foundation/fibdrv/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var noFUSE bool
	var showVersion bool

	flagSet := pflag.NewFlagSet("fibdrv", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $"+config.EnvVar+")")
	flagSet.BoolVar(&noFUSE, "no-fuse", false, "serve the socket only, without mounting the device")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage("%v", err)
	}
	if flagSet.NArg() > 0 {
		return process.Usage("unexpected argument: %s", flagSet.Arg(0))
	}

	if showVersion {
		version.Print("fibdrv")
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if noFUSE {
		cfg.FUSE.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting fibdrv",
		"version", version.Info(),
		"environment", cfg.Environment,
		"socket_path", cfg.Paths.Socket,
		"algorithm", cfg.Engine.Algorithm,
	)

	engine, err := fibonacci.New(cfg.EngineOptions())
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := fibdev.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	device, err := fibdev.New(fibdev.Options{
		Engine:  engine,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.FUSE.Enabled {
		if err := fibfuse.Available(); err != nil {
			return fmt.Errorf("FUSE unavailable (use --no-fuse to serve the socket only): %w", err)
		}
		server, err := fibfuse.Mount(fibfuse.Options{
			Mountpoint: cfg.Paths.Mountpoint,
			Device:     device,
			AllowOther: cfg.FUSE.AllowOther,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := server.Unmount(); err != nil {
				logger.Error("unmounting device filesystem", "error", err)
			}
		}()
	}

	idleTimeout, _ := cfg.IdleTimeout()
	fibService, err := fibservice.New(fibservice.Options{
		Device:      device,
		IdleTimeout: idleTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer fibService.Close()

	socketServer := service.NewSocketServer(cfg.Paths.Socket, logger)
	fibService.Register(socketServer)

	socketDone := make(chan error, 1)
	go func() { socketDone <- socketServer.Serve(ctx) }()

	errs := make(chan error, 1)

	if cfg.Metrics.ListenAddress != "" {
		httpServer, err := serveMetrics(cfg.Metrics.ListenAddress, registry, logger, errs)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("stopping metrics server", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		if err := <-socketDone; err != nil {
			return fmt.Errorf("socket server: %w", err)
		}
	case err := <-socketDone:
		if err == nil {
			err = errors.New("stopped unexpectedly")
		}
		return fmt.Errorf("socket server: %w", err)
	case err := <-errs:
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// serveMetrics starts the /metrics endpoint. Listen errors are returned
// directly; serve errors after startup are sent to errs.
func serveMetrics(address string, registry *prometheus.Registry, logger *slog.Logger, errs chan<- error) (*http.Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	logger.Info("serving metrics", "address", listener.Addr().String())
	return server, nil
}
