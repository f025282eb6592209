package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/lodestone/internal/host"
	"github.com/florianilch/lodestone/internal/launcher"
)

const storedCredentials = `[
	{"user":{"accountId":"","userId":"u1","displayName":"Alice","userHash":""},"accounts":[],"tokens":{"sub":"u1","session_id":"s1"}},
	{"user":{"accountId":"","userId":"u2","displayName":"Bob","userHash":""},"accounts":[],"tokens":{"sub":"u2","session_id":"s2"}}
]`

func newTestLauncher(t *testing.T) (*Launcher, host.Documents) {
	t.Helper()

	cfg, err := Default()
	require.NoError(t, err)
	cfg.Host.DataDir = t.TempDir()
	cfg.Persist.FlushInterval = time.Hour

	docs, err := cfg.Host.Documents()
	require.NoError(t, err)
	require.NoError(t, docs.Credentials.Write(context.Background(), []byte(storedCredentials)))

	srv, err := host.New(docs)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	cfg.Remote.BaseURL = ts.URL

	l, err := NewLauncher(context.Background(), cfg)
	require.NoError(t, err)
	return l, docs
}

func TestLauncher_LoadsStateAndFlushesOnExit(t *testing.T) {
	l, docs := newTestLauncher(t)
	ctx := context.Background()

	require.Len(t, l.Service().Sessions(), 2)

	err := l.Run(ctx, func(_ context.Context, svc *launcher.Service) error {
		return svc.Select("u2")
	})
	require.NoError(t, err)

	stored, err := docs.Config.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(stored), `"user_id":"u2"`)
}

func TestLauncher_RunReturnsActionError(t *testing.T) {
	l, _ := newTestLauncher(t)

	err := l.Run(context.Background(), func(_ context.Context, svc *launcher.Service) error {
		return svc.Select("nobody")
	})
	require.ErrorIs(t, err, launcher.ErrUnknownUser)
}

func TestNewLauncher_UnreachableStore(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	ts := httptest.NewServer(nil)
	cfg.Remote.BaseURL = ts.URL
	ts.Close()

	_, err = NewLauncher(context.Background(), cfg)
	require.Error(t, err)
}
