package launcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/lodestone/internal/identity"
	"github.com/florianilch/lodestone/internal/launcher"
	"github.com/florianilch/lodestone/internal/persist"
	"github.com/florianilch/lodestone/internal/session"
	"github.com/florianilch/lodestone/internal/settings"
)

// fakeBuilder builds sessions straight from the token subject.
type fakeBuilder struct {
	err error
}

func (b *fakeBuilder) BuildSession(_ context.Context, tokens session.AuthTokens, sessionID string) (session.Session, error) {
	if b.err != nil {
		return session.Session{}, b.err
	}
	tokens.SessionID = sessionID
	return session.Session{
		User:     session.Account{UserID: tokens.Sub, DisplayName: tokens.Sub},
		Accounts: []session.Account{{AccountID: "acc-" + tokens.Sub, UserID: tokens.Sub}},
		Tokens:   tokens,
	}, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
	err     error
}

func (r *fakeRevoker) RevokeOAuthCreds(_ context.Context, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, accessToken)
	return r.err
}

func (r *fakeRevoker) tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.revoked...)
}

type fakeCredentials struct {
	mu    sync.Mutex
	saved [][]session.Session
	err   error
}

func (c *fakeCredentials) SaveCredentials(_ context.Context, sessions []session.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, sessions)
	return c.err
}

type fakeSaver struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSaver) SaveDocument(context.Context, settings.Kind, json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

type fakePicker struct {
	path string
	ok   bool
	err  error
}

func (p fakePicker) OpenFilePicker(context.Context) (string, bool, error) {
	return p.path, p.ok, p.err
}

type fakeRefresher struct {
	next session.AuthTokens
}

func (r fakeRefresher) Refresh(_ context.Context, tokens session.AuthTokens) (session.AuthTokens, error) {
	next := r.next
	next.Sub = tokens.Sub
	return next, nil
}

type fixture struct {
	state       *launcher.State
	service     *launcher.Service
	builder     *fakeBuilder
	revoker     *fakeRevoker
	credentials *fakeCredentials
	saver       *fakeSaver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:       launcher.NewState(),
		builder:     &fakeBuilder{},
		revoker:     &fakeRevoker{},
		credentials: &fakeCredentials{},
		saver:       &fakeSaver{},
	}
	svc, err := launcher.NewService(f.state, launcher.Dependencies{
		Builder:     f.builder,
		Revoker:     f.revoker,
		Credentials: f.credentials,
		Persister:   persist.New(f.state.Settings, f.saver),
	})
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *fixture) login(t *testing.T, userID, accessToken string) session.Session {
	t.Helper()
	sess, err := f.service.Login(context.Background(), session.AuthTokens{Sub: userID, AccessToken: accessToken}, "sid-"+userID)
	require.NoError(t, err)
	return sess
}

func (f *fixture) selected() string {
	id, _ := f.state.Settings.Selected()
	return id
}

// assertSelectionConsistent checks that a selected user always has a session.
func (f *fixture) assertSelectionConsistent(t *testing.T) {
	t.Helper()
	if id, ok := f.state.Settings.Selected(); ok {
		_, found := f.state.Sessions.Find(id)
		assert.True(t, found, "selected user %s has no session", id)
	}
}

func TestLogin_NewUserBecomesSelected(t *testing.T) {
	f := newFixture(t)

	sess := f.login(t, "alice", "a1")

	assert.Equal(t, "alice", sess.UserID())
	assert.Equal(t, 1, f.state.Sessions.Len())
	assert.Equal(t, "alice", f.selected())
	assert.Zero(t, f.saver.calls, "login does not persist")
	assert.Empty(t, f.credentials.saved)
}

func TestLogin_ReturningUserKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.login(t, "bob", "b1")
	assert.Equal(t, "bob", f.selected())

	f.login(t, "alice", "a2")

	assert.Equal(t, 2, f.state.Sessions.Len())
	assert.Equal(t, "bob", f.selected(), "re-login must not steal focus")
	got, ok := f.service.FindSession("alice")
	require.True(t, ok)
	assert.Equal(t, "a2", got.Tokens.AccessToken)
	assert.Equal(t, "alice", f.service.Sessions()[0].UserID(), "position preserved")
}

func TestLogin_BuildFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.state.Settings.ClearDirty(settings.KindConfig)

	buildErr := &identity.BuildError{Reason: "failed to fetch game accounts"}
	f.builder.err = buildErr

	_, err := f.service.Login(context.Background(), session.AuthTokens{Sub: "bob", AccessToken: "b1"}, "sid")

	require.ErrorIs(t, err, buildErr)
	assert.Equal(t, 1, f.state.Sessions.Len())
	assert.Equal(t, "alice", f.selected())
	assert.False(t, f.state.Settings.IsDirty(settings.KindConfig))
}

func TestLogout_SelectedUserClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.state.Settings.SetUserDetails("alice", settings.UserDetails{AccountID: "acc-alice"})

	remaining, found := f.service.Logout(context.Background(), "alice")
	f.service.Wait()

	assert.True(t, found)
	assert.Empty(t, remaining)
	_, ok := f.state.Settings.Selected()
	assert.False(t, ok)
	_, ok = f.state.Settings.UserDetails("alice")
	assert.False(t, ok)
	assert.Equal(t, []string{"a1"}, f.revoker.tokens())
}

func TestLogout_BackgroundUserKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.login(t, "bob", "b1")
	require.NoError(t, f.service.Select("alice"))

	remaining, found := f.service.Logout(context.Background(), "bob")
	f.service.Wait()

	assert.True(t, found)
	require.Len(t, remaining, 1)
	assert.Equal(t, "alice", remaining[0].UserID())
	assert.Equal(t, "alice", f.selected())
}

func TestLogout_TwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.login(t, "bob", "b1")
	ctx := context.Background()

	_, found := f.service.Logout(ctx, "alice")
	require.True(t, found)
	f.service.Wait()
	f.state.Settings.ClearDirty(settings.KindConfig)
	before := f.state.Settings.Config()
	sessionsBefore := f.service.Sessions()

	remaining, found := f.service.Logout(ctx, "alice")
	f.service.Wait()

	assert.False(t, found)
	assert.Equal(t, sessionsBefore, remaining)
	assert.Equal(t, before, f.state.Settings.Config())
	assert.False(t, f.state.Settings.IsDirty(settings.KindConfig), "second logout changes nothing")
	assert.Equal(t, []string{"a1"}, f.revoker.tokens(), "revocation only for the removed session")
}

func TestLogout_RevocationFailureDoesNotBlockRemoval(t *testing.T) {
	f := newFixture(t)
	f.revoker.err = errors.New("network down")
	f.login(t, "alice", "a1")

	remaining, found := f.service.Logout(context.Background(), "alice")
	f.service.Wait()

	assert.True(t, found)
	assert.Empty(t, remaining)
}

func TestLogout_RevocationOutlivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")

	ctx, cancel := context.WithCancel(context.Background())
	_, found := f.service.Logout(ctx, "alice")
	cancel()
	f.service.Wait()

	assert.True(t, found)
	assert.Equal(t, []string{"a1"}, f.revoker.tokens())
}

func TestSelectionInvariantAcrossSequences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	steps := []struct {
		login  bool
		userID string
	}{
		{true, "alice"}, {true, "bob"}, {false, "bob"}, {true, "carol"}, {false, "alice"},
		{true, "alice"}, {false, "carol"}, {false, "carol"}, {false, "alice"}, {true, "bob"},
	}

	for _, step := range steps {
		if step.login {
			f.login(t, step.userID, "tok")
		} else {
			f.service.Logout(ctx, step.userID)
		}
		f.assertSelectionConsistent(t)
	}
	f.service.Wait()
}

func TestConcurrentLoginLogoutKeepsSelectionConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := []string{"alice", "bob"}[i%2]
			if i%3 == 0 {
				f.service.Logout(ctx, user)
				return
			}
			_, _ = f.service.Login(ctx, session.AuthTokens{Sub: user, AccessToken: "t"}, "sid")
		}()
	}
	wg.Wait()
	f.service.Wait()

	f.assertSelectionConsistent(t)
}

func TestSelect(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.login(t, "bob", "b1")

	require.NoError(t, f.service.Select("alice"))
	sess, ok := f.service.SelectedSession()
	require.True(t, ok)
	assert.Equal(t, "alice", sess.UserID())

	require.ErrorIs(t, f.service.Select("mallory"), launcher.ErrUnknownUser)
	assert.Equal(t, "alice", f.selected())
}

func TestSaveConfigAndCredentials(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	ctx := context.Background()

	res := <-f.service.SaveConfig(ctx, false)
	assert.Equal(t, persist.StatusSaved, res.Status)
	res = <-f.service.SaveConfig(ctx, false)
	assert.Equal(t, persist.StatusSkippedClean, res.Status)
	res = <-f.service.SavePluginConfig(ctx, true)
	assert.Equal(t, persist.StatusSaved, res.Status)
	assert.Equal(t, 2, f.saver.calls)

	require.NoError(t, f.service.SaveCredentials(ctx))
	require.Len(t, f.credentials.saved, 1)
	require.Len(t, f.credentials.saved[0], 1)
	assert.Equal(t, "alice", f.credentials.saved[0][0].UserID())

	f.credentials.err = errors.New("rejected")
	require.Error(t, f.service.SaveCredentials(ctx))
}

func TestPickRuneLiteJar(t *testing.T) {
	state := launcher.NewState()
	svc, err := launcher.NewService(state, launcher.Dependencies{
		Builder:    &fakeBuilder{},
		Revoker:    &fakeRevoker{},
		FilePicker: fakePicker{path: "/opt/runelite.jar", ok: true},
	})
	require.NoError(t, err)

	path, ok := svc.PickRuneLiteJar(context.Background())
	require.True(t, ok)
	assert.Equal(t, "/opt/runelite.jar", path)
	require.NotNil(t, state.Settings.Config().RuneLiteJarPath)
	assert.Equal(t, "/opt/runelite.jar", *state.Settings.Config().RuneLiteJarPath)
	assert.True(t, state.Settings.IsDirty(settings.KindConfig))

	svc, err = launcher.NewService(launcher.NewState(), launcher.Dependencies{
		Builder:    &fakeBuilder{},
		Revoker:    &fakeRevoker{},
		FilePicker: fakePicker{err: errors.New("no display")},
	})
	require.NoError(t, err)
	_, ok = svc.OpenFilePicker(context.Background())
	assert.False(t, ok)
}

func TestRefresh_RotatedTokenSavesCredentials(t *testing.T) {
	state := launcher.NewState()
	credentials := &fakeCredentials{}
	svc, err := launcher.NewService(state, launcher.Dependencies{
		Builder:     &fakeBuilder{},
		Revoker:     &fakeRevoker{},
		Credentials: credentials,
		Refresher:   fakeRefresher{next: session.AuthTokens{AccessToken: "a2", RefreshToken: "r2"}},
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Login(ctx, session.AuthTokens{Sub: "alice", AccessToken: "a1", RefreshToken: "r1"}, "sid-1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, session.AuthTokens{Sub: "bob", AccessToken: "b1"}, "sid-2")
	require.NoError(t, err)

	sess, err := svc.Refresh(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, "a2", sess.Tokens.AccessToken)
	assert.Equal(t, "sid-1", sess.Tokens.SessionID)
	assert.Equal(t, 2, state.Sessions.Len())
	selected, _ := state.Settings.Selected()
	assert.Equal(t, "bob", selected, "refresh goes through the update path")
	assert.Len(t, credentials.saved, 1)

	_, err = svc.Refresh(ctx, "mallory")
	require.ErrorIs(t, err, launcher.ErrUnknownUser)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := launcher.NewService(nil, launcher.Dependencies{})
	require.Error(t, err)
	_, err = launcher.NewService(launcher.NewState(), launcher.Dependencies{Revoker: &fakeRevoker{}})
	require.Error(t, err)
	_, err = launcher.NewService(launcher.NewState(), launcher.Dependencies{Builder: &fakeBuilder{}})
	require.Error(t, err)
}

func TestSelectAccount(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice", "a1")
	f.login(t, "bob", "b1")

	require.NoError(t, f.service.SelectAccount("alice", "acc-alice"))
	details, ok := f.state.Settings.UserDetails("alice")
	require.True(t, ok)
	assert.Equal(t, "acc-alice", details.AccountID)
	assert.Nil(t, f.state.Settings.Config().Selected.AccountID, "alice is not the selected user")

	require.NoError(t, f.service.SelectAccount("bob", "acc-bob"))
	selectedAccount := f.state.Settings.Config().Selected.AccountID
	require.NotNil(t, selectedAccount)
	assert.Equal(t, "acc-bob", *selectedAccount)
	assert.True(t, f.state.Settings.IsDirty(settings.KindConfig))

	require.ErrorIs(t, f.service.SelectAccount("bob", "acc-alice"), launcher.ErrUnknownAccount)
	require.ErrorIs(t, f.service.SelectAccount("mallory", "acc-mallory"), launcher.ErrUnknownUser)
}

func TestRefreshExpired(t *testing.T) {
	state := launcher.NewState()
	svc, err := launcher.NewService(state, launcher.Dependencies{
		Builder:   &fakeBuilder{},
		Revoker:   &fakeRevoker{},
		Refresher: fakeRefresher{next: session.AuthTokens{AccessToken: "a2", RefreshToken: "r1"}},
	})
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err = svc.Login(ctx, session.AuthTokens{Sub: "alice", AccessToken: "a1", RefreshToken: "r1", Expiry: now.Add(time.Hour)}, "sid-1")
	require.NoError(t, err)

	sess, refreshed, err := svc.RefreshExpired(ctx, "alice", now)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, "a1", sess.Tokens.AccessToken)

	sess, refreshed, err = svc.RefreshExpired(ctx, "alice", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "a2", sess.Tokens.AccessToken)

	_, _, err = svc.RefreshExpired(ctx, "mallory", now)
	require.ErrorIs(t, err, launcher.ErrUnknownUser)
}
