package sisapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyStore(t *testing.T) {
	store := NewMemoryKeyStore()
	path := KeyPath{"sis", "live", "demoschool"}

	_, ok := store.Get(path)
	assert.False(t, ok)

	require.NoError(t, store.Set(path, "demoschool.abc123"))

	key, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, "demoschool.abc123", key)
}

func TestFileKeyStoreRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "keys", "sisapi.yaml")
	path := KeyPath{"sis", "live", "demoschool"}

	store, err := NewFileKeyStore(file)
	require.NoError(t, err)

	require.NoError(t, store.Set(path, "demoschool.abc123"))

	// A fresh store over the same file sees the persisted key.
	reopened, err := NewFileKeyStore(file)
	require.NoError(t, err)

	key, ok := reopened.Get(path)
	require.True(t, ok)
	assert.Equal(t, "demoschool.abc123", key)
}

func TestFileKeyStoreRejectsMalformedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sisapi.yaml")
	require.NoError(t, os.WriteFile(file, []byte("not: [valid"), 0o600))

	_, err := NewFileKeyStore(file)
	assert.Error(t, err)
}

func TestKeyPathString(t *testing.T) {
	assert.Equal(t, "sis:live:demoschool", KeyPath{"sis", "live", "demoschool"}.String())
}
