package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/lodestone/internal/identity"
	"github.com/florianilch/lodestone/internal/launcher"
	"github.com/florianilch/lodestone/internal/persist"
	"github.com/florianilch/lodestone/internal/remote"
)

// Launcher wires the session lifecycle service to the remote store and the
// identity provider.
type Launcher struct {
	cfg       *Config
	service   *launcher.Service
	persister *persist.Persister
	flusher   *persist.Flusher
}

// NewLauncher creates a Launcher and loads its state from the remote store.
func NewLauncher(ctx context.Context, cfg *Config) (*Launcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := remote.NewClient(cfg.Remote.BaseURL,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}

	state := launcher.NewState()
	if err := state.Load(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	identityClient := &http.Client{Timeout: cfg.Identity.Timeout}
	persister := persist.New(state.Settings, client, persist.WithSaveTimeout(cfg.Persist.SaveTimeout))

	service, err := launcher.NewService(state, launcher.Dependencies{
		Builder:     identity.NewBuilder(cfg.Identity.ProfileURL, cfg.Identity.AccountsURL, identity.WithBuilderHTTPClient(identityClient)),
		Revoker:     identity.NewRevoker(cfg.Identity.RevokeURL, cfg.Identity.ClientID, identityClient),
		Credentials: client,
		FilePicker:  client,
		Refresher:   identity.NewRefresher(cfg.Identity.ClientID, identity.Endpoint(cfg.Identity.TokenURL)),
		Persister:   persister,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &Launcher{
		cfg:       cfg,
		service:   service,
		persister: persister,
		flusher:   persist.NewFlusher(persister, cfg.Persist.FlushInterval, clockwork.NewRealClock()),
	}, nil
}

// Service returns the session lifecycle service.
func (l *Launcher) Service() *launcher.Service {
	return l.service
}

// Run calls fn while the flusher saves dirty documents in the background.
// Afterwards remaining changes are flushed and outstanding revocations are awaited.
func (l *Launcher) Run(ctx context.Context, fn func(context.Context, *launcher.Service) error) error {
	flushCtx, stopFlusher := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(flushCtx)
	g.Go(func() error {
		return l.flusher.Run(gCtx)
	})

	runErr := fn(ctx, l.service)

	stopFlusher()
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "flusher failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := l.persister.Flush(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("flushing documents: %w", err))
	}
	l.service.Wait()

	return errors.Join(errs...)
}
