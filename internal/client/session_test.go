package client

import (
	"os"
	"path/filepath"
	"testing"

	"lockify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewSessionStore(path)

	sess, err := store.Hydrate()
	require.NoError(t, err)
	assert.False(t, sess.SignedIn())

	want := Session{
		Token: "tok",
		User:  models.PublicUser{FirstName: "Alice", Email: "alice@gmail.com", Gender: "female"},
	}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := NewSessionStore(path).Hydrate()
	require.NoError(t, err)
	assert.Equal(t, want, reloaded)

	require.NoError(t, store.Clear())
	assert.False(t, store.Current().SignedIn())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Clear())
}

func TestSessionStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewSessionStore(path).Hydrate()
	assert.Error(t, err)
}
