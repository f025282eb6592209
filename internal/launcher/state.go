package launcher

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/lodestone/internal/session"
	"github.com/florianilch/lodestone/internal/settings"
)

// Loader fetches the persisted documents at startup.
type Loader interface {
	LoadConfig(ctx context.Context) (settings.Config, error)
	LoadPluginConfig(ctx context.Context) (map[string]any, error)
	LoadCredentials(ctx context.Context) ([]session.Session, error)
}

// State owns the session list and the config documents for the lifetime of
// the process.
type State struct {
	Sessions *session.Store
	Settings *settings.Store
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		Sessions: session.NewStore(),
		Settings: settings.NewStore(settings.Config{}, nil),
	}
}

// Load fetches all documents concurrently and installs them. A selection
// pointing at a user without a session is cleared.
func (s *State) Load(ctx context.Context, loader Loader) error {
	var (
		cfg      settings.Config
		plugin   map[string]any
		sessions []session.Session
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = loader.LoadConfig(gCtx)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		plugin, err = loader.LoadPluginConfig(gCtx)
		if err != nil {
			return fmt.Errorf("loading plugin config: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		sessions, err = loader.LoadCredentials(gCtx)
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.Sessions.Replace(sessions)
	s.Settings.Load(cfg, plugin)

	if selected, ok := s.Settings.Selected(); ok {
		if _, found := s.Sessions.Find(selected); !found {
			slog.WarnContext(ctx, "selected user has no session, clearing selection", "user_id", selected)
			s.Settings.ClearSelectedIf(selected)
		}
	}

	slog.DebugContext(ctx, "state loaded", "sessions", s.Sessions.Len())
	return nil
}
