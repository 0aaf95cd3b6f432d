package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServeFixture provides a catalog file plus the environment a twilio
// serve needs, except the public host.
func setupServeFixture(t *testing.T) (catalogPath, dataDir string) {
	t.Helper()

	dir := t.TempDir()
	catalogPath = filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(checkValidCatalog), 0o644))
	dataDir = filepath.Join(dir, "data")

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("STORAGE_CONNECTION_STRING", "")
	t.Setenv("STORAGE_ACCOUNT", "")
	t.Setenv("LOCAL_MODE", "")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550100")
	t.Setenv("TARGET_PHONE_NUMBER", "+15550111")
	t.Setenv("PUBLIC_HOST", "")

	return catalogPath, dataDir
}

func TestServeCommand_TwilioRequiresPublicHost(t *testing.T) {
	catalogPath, dataDir := setupServeFixture(t)

	cmd := newServeCommand()
	cmd.SetArgs([]string{
		"--engine", "twilio",
		"--catalog", catalogPath,
		"--local",
		"--data-dir", dataDir,
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public-host")
}

func TestServeCommand_TwilioRequiresTargetNumber(t *testing.T) {
	catalogPath, dataDir := setupServeFixture(t)
	t.Setenv("TARGET_PHONE_NUMBER", "")

	cmd := newServeCommand()
	cmd.SetArgs([]string{
		"--engine", "twilio",
		"--catalog", catalogPath,
		"--local",
		"--data-dir", dataDir,
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_PHONE_NUMBER")
}
