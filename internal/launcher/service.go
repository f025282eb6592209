package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/florianilch/lodestone/internal/metrics"
	"github.com/florianilch/lodestone/internal/persist"
	"github.com/florianilch/lodestone/internal/session"
	"github.com/florianilch/lodestone/internal/settings"
)

// revokeTimeout bounds a background token revocation.
const revokeTimeout = 10 * time.Second

// ErrUnknownUser is returned by operations that require an existing session.
var ErrUnknownUser = errors.New("no session for user")

// ErrUnknownAccount is returned when a user has no game account with the given id.
var ErrUnknownAccount = errors.New("no such game account")

// SessionBuilder exchanges tokens and a game session id for a Session.
type SessionBuilder interface {
	BuildSession(ctx context.Context, tokens session.AuthTokens, sessionID string) (session.Session, error)
}

// Revoker revokes an access token at the identity provider.
type Revoker interface {
	RevokeOAuthCreds(ctx context.Context, accessToken string) error
}

// CredentialSaver persists the full session list.
type CredentialSaver interface {
	SaveCredentials(ctx context.Context, sessions []session.Session) error
}

// FilePicker asks the user for a file path.
type FilePicker interface {
	OpenFilePicker(ctx context.Context) (string, bool, error)
}

// TokenRefresher exchanges a refresh token for new tokens.
type TokenRefresher interface {
	Refresh(ctx context.Context, tokens session.AuthTokens) (session.AuthTokens, error)
}

// Dependencies are the collaborators of a Service. Builder and Revoker are
// required; operations backed by a nil optional collaborator return an error.
type Dependencies struct {
	Builder     SessionBuilder
	Revoker     Revoker
	Credentials CredentialSaver
	FilePicker  FilePicker
	Refresher   TokenRefresher
	Persister   *persist.Persister
}

// Service implements the session lifecycle on top of a State.
type Service struct {
	state *State
	deps  Dependencies

	// mu serializes the in-memory steps of login and logout so the session
	// list and the selection change together.
	mu sync.Mutex
	wg sync.WaitGroup
}

// NewService creates a Service operating on state.
func NewService(state *State, deps Dependencies) (*Service, error) {
	if state == nil {
		return nil, errors.New("missing state")
	}
	if deps.Builder == nil {
		return nil, errors.New("missing session builder")
	}
	if deps.Revoker == nil {
		return nil, errors.New("missing revoker")
	}
	return &Service{state: state, deps: deps}, nil
}

// State returns the state the service operates on.
func (s *Service) State() *State {
	return s.state
}

// Login builds a session from tokens and stores it. A user logging in for the
// first time becomes the selected user; a returning user keeps the current
// selection. Build failures are returned unchanged and leave state untouched.
func (s *Service) Login(ctx context.Context, tokens session.AuthTokens, sessionID string) (session.Session, error) {
	sess, err := s.deps.Builder.BuildSession(ctx, tokens, sessionID)
	if err != nil {
		metrics.SessionOperationsTotal.WithLabelValues("login", "failed").Inc()
		return session.Session{}, err
	}

	s.mu.Lock()
	outcome := s.state.Sessions.Upsert(sess)
	if outcome == session.Added {
		s.state.Settings.SetSelected(sess.UserID())
	}
	count := s.state.Sessions.Len()
	s.mu.Unlock()

	metrics.SessionOperationsTotal.WithLabelValues("login", outcome.String()).Inc()
	metrics.SessionsCurrent.Set(float64(count))
	slog.InfoContext(ctx, "session stored", "user_id", sess.UserID(), "outcome", outcome.String())

	return sess, nil
}

// Logout removes the session of userID, its user details and, if it was
// selected, the selection. The access token is revoked in the background.
// It returns the remaining sessions and whether a session was removed.
func (s *Service) Logout(ctx context.Context, userID string) ([]session.Session, bool) {
	s.mu.Lock()
	removed, found := s.state.Sessions.Remove(userID)
	s.state.Settings.RemoveUserDetails(userID)
	s.state.Settings.ClearSelectedIf(userID)
	remaining := s.state.Sessions.List()
	s.mu.Unlock()

	if !found {
		metrics.SessionOperationsTotal.WithLabelValues("logout", "not_found").Inc()
		slog.DebugContext(ctx, "logout of unknown user", "user_id", userID)
		return remaining, false
	}

	if removed.Tokens.AccessToken != "" {
		s.revoke(ctx, userID, removed.Tokens.AccessToken)
	}

	metrics.SessionOperationsTotal.WithLabelValues("logout", "removed").Inc()
	metrics.SessionsCurrent.Set(float64(len(remaining)))
	slog.InfoContext(ctx, "session removed", "user_id", userID)

	return remaining, true
}

// revoke fires a revocation that outlives ctx. Failures are only logged.
func (s *Service) revoke(ctx context.Context, userID, accessToken string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
		defer cancel()

		if err := s.deps.Revoker.RevokeOAuthCreds(ctx, accessToken); err != nil {
			metrics.SessionOperationsTotal.WithLabelValues("revoke", "failed").Inc()
			slog.WarnContext(ctx, "token revocation failed", "user_id", userID, "error", err)
			return
		}
		metrics.SessionOperationsTotal.WithLabelValues("revoke", "revoked").Inc()
	}()
}

// Wait blocks until background revocations have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Select makes userID the selected user. The user must have a session.
func (s *Service) Select(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Sessions.Find(userID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	s.state.Settings.SetSelected(userID)
	return nil
}

// SelectAccount records accountID as the preferred game account of userID.
// If userID is the selected user, the selection points at the account too.
func (s *Service) SelectAccount(userID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.state.Sessions.Find(userID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if _, ok := session.FindAccount(sess.Accounts, accountID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}

	s.state.Settings.SetUserDetails(userID, settings.UserDetails{AccountID: accountID})
	if selected, ok := s.state.Settings.Selected(); ok && selected == userID {
		s.state.Settings.Update(func(cfg *settings.Config) {
			cfg.Selected.AccountID = &accountID
		})
	}
	return nil
}

// FindSession returns the session of userID.
func (s *Service) FindSession(userID string) (session.Session, bool) {
	return s.state.Sessions.Find(userID)
}

// SelectedSession returns the session of the selected user.
func (s *Service) SelectedSession() (session.Session, bool) {
	userID, ok := s.state.Settings.Selected()
	if !ok {
		return session.Session{}, false
	}
	return s.state.Sessions.Find(userID)
}

// Sessions returns a snapshot of all sessions.
func (s *Service) Sessions() []session.Session {
	return s.state.Sessions.List()
}

// SaveConfig requests a save of the main config.
func (s *Service) SaveConfig(ctx context.Context, force bool) <-chan persist.Result {
	return s.requestSave(ctx, settings.KindConfig, force)
}

// SavePluginConfig requests a save of the plugin config.
func (s *Service) SavePluginConfig(ctx context.Context, force bool) <-chan persist.Result {
	return s.requestSave(ctx, settings.KindPluginConfig, force)
}

func (s *Service) requestSave(ctx context.Context, kind settings.Kind, force bool) <-chan persist.Result {
	if s.deps.Persister == nil {
		done := make(chan persist.Result, 1)
		done <- persist.Result{Kind: kind, Status: persist.StatusFailed, Err: errors.New("no persister configured")}
		close(done)
		return done
	}
	return s.deps.Persister.RequestSave(ctx, kind, force)
}

// SaveCredentials overwrites the stored session list with the current one.
func (s *Service) SaveCredentials(ctx context.Context) error {
	if s.deps.Credentials == nil {
		return errors.New("no credential store configured")
	}
	if err := s.deps.Credentials.SaveCredentials(ctx, s.state.Sessions.List()); err != nil {
		slog.ErrorContext(ctx, "failed to save credentials", "error", err)
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// OpenFilePicker asks the user for a file. It reports false when nothing was
// picked or the picker is unavailable.
func (s *Service) OpenFilePicker(ctx context.Context) (string, bool) {
	if s.deps.FilePicker == nil {
		return "", false
	}
	path, ok, err := s.deps.FilePicker.OpenFilePicker(ctx)
	if err != nil {
		slog.WarnContext(ctx, "file picker failed", "error", err)
		return "", false
	}
	return path, ok
}

// PickRuneLiteJar lets the user pick a custom RuneLite jar and stores it in
// the config.
func (s *Service) PickRuneLiteJar(ctx context.Context) (string, bool) {
	path, ok := s.OpenFilePicker(ctx)
	if !ok || path == "" {
		return "", false
	}
	s.state.Settings.SetRuneLiteJarPath(path)
	return path, true
}

// Refresh exchanges the stored refresh token of userID for new tokens and
// stores the rebuilt session. Credentials are saved when the refresh token
// was rotated.
func (s *Service) Refresh(ctx context.Context, userID string) (session.Session, error) {
	if s.deps.Refresher == nil {
		return session.Session{}, errors.New("no token refresher configured")
	}

	current, ok := s.state.Sessions.Find(userID)
	if !ok {
		return session.Session{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	fresh, err := s.deps.Refresher.Refresh(ctx, current.Tokens)
	if err != nil {
		return session.Session{}, fmt.Errorf("refreshing %s: %w", userID, err)
	}

	sess, err := s.Login(ctx, fresh, current.Tokens.SessionID)
	if err != nil {
		return session.Session{}, err
	}

	if fresh.RefreshToken != current.Tokens.RefreshToken && s.deps.Credentials != nil {
		if err := s.SaveCredentials(ctx); err != nil {
			slog.ErrorContext(ctx, "rotated refresh token not persisted", "user_id", userID)
		}
	}
	return sess, nil
}

// RefreshExpired refreshes the session of userID only if its access token has
// expired at now. It reports whether a refresh happened.
func (s *Service) RefreshExpired(ctx context.Context, userID string, now time.Time) (session.Session, bool, error) {
	current, ok := s.state.Sessions.Find(userID)
	if !ok {
		return session.Session{}, false, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if !current.Tokens.Expired(now) {
		return current, false, nil
	}

	sess, err := s.Refresh(ctx, userID)
	if err != nil {
		return session.Session{}, false, err
	}
	return sess, true, nil
}
