package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/lodestone/internal/host"
)

// App orchestrates the lifecycle of the backing store server.
type App struct {
	cfg  *Config
	host *host.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	docs, err := cfg.Host.Documents()
	if err != nil {
		return nil, fmt.Errorf("failed to open document stores: %w", err)
	}

	server, err := host.New(docs, host.WithJarFile(cfg.Host.JarFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	return &App{
		cfg:  cfg,
		host: server,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Host.Address()
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting host server", "address", address, "data_dir", a.cfg.Host.DataDir)
	hostErrCh, err := a.host.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("host startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.host.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-hostErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "host runtime error", "error", err)
				return fmt.Errorf("host: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
