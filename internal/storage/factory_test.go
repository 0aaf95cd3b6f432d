package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/config"
)

func TestOpenLocalMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := Open(&config.Settings{LocalMode: true, LocalDir: dir})
	require.NoError(t, err)

	local, ok := store.(*LocalStore)
	require.True(t, ok)
	assert.Equal(t, dir, local.Root())
}

func TestOpenUnconfigured(t *testing.T) {
	_, err := Open(&config.Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage configured")
}
