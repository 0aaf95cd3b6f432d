package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/config"
)

func clearCloudEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_CONNECTION_STRING", "")
	t.Setenv("STORAGE_ACCOUNT", "")
	t.Setenv("LOCAL_MODE", "")
}

func TestNewStorageBackend_FallsBackToLocal(t *testing.T) {
	clearCloudEnv(t)
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("LOCAL_STORAGE_DIR", dir)

	backend, err := newStorageBackend(config.LoadSettings(), "", false)
	require.NoError(t, err)

	assert.True(t, backend.local)
	assert.Equal(t, dir, backend.localRoot)
	assert.Empty(t, backend.account)
}

func TestNewStorageBackend_DataDirFlagWins(t *testing.T) {
	clearCloudEnv(t)
	t.Setenv("LOCAL_STORAGE_DIR", filepath.Join(t.TempDir(), "env-dir"))
	flagDir := filepath.Join(t.TempDir(), "flag-dir")

	backend, err := newStorageBackend(config.LoadSettings(), flagDir, true)
	require.NoError(t, err)

	assert.True(t, backend.local)
	assert.Equal(t, flagDir, backend.localRoot)
}

func TestNewJudge_ModelFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	j, err := newJudge(config.LoadSettings(), "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", j.Model())

	j, err = newJudge(config.LoadSettings(), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", j.Model())
}

func TestNewJudge_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := newJudge(config.LoadSettings(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestTwilioCreds(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550100")

	sid, token, from, err := twilioCreds(config.LoadSettings())
	require.NoError(t, err)
	assert.Equal(t, "AC123", sid)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "+15550100", from)

	t.Setenv("TWILIO_AUTH_TOKEN", "")
	_, _, _, err = twilioCreds(config.LoadSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWILIO_AUTH_TOKEN")
}

func TestAccountFromConnString(t *testing.T) {
	conn := "DefaultEndpointsProtocol=https;AccountName=dialcheckprod;AccountKey=abc123;EndpointSuffix=core.windows.net"
	assert.Equal(t, "dialcheckprod", accountFromConnString(conn))
	assert.Empty(t, accountFromConnString("AccountKey=abc123"))
}
