package docstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/florianilch/lodestone/internal/docstore"
)

func TestFileStore_WriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	store, err := docstore.NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Read(ctx)
	require.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.Write(ctx, []byte(`{"a":1}`)))
	require.NoError(t, store.Write(ctx, []byte(`{"a":2}`)))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_RejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	store, err := docstore.NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Read(context.Background())
	require.ErrorContains(t, err, "insecure permissions")
}

func TestFileStore_CancelledContext(t *testing.T) {
	store, err := docstore.NewFileStore(filepath.Join(t.TempDir(), "doc.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Write(ctx, []byte("{}")), context.Canceled)
	_, err = store.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := docstore.NewFileStore("")
	require.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	store, err := docstore.NewKeyringStore("lodestone-test", "alice")
	require.NoError(t, err)

	_, err = store.Read(ctx)
	require.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.Write(ctx, []byte(`[{"user":{}}]`)))
	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[{"user":{}}]`, string(got))

	_, err = docstore.NewKeyringStore("", "alice")
	require.Error(t, err)
	_, err = docstore.NewKeyringStore("svc", "")
	require.Error(t, err)
}
