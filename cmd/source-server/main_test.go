package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-config", "c.yaml", "-address", ":9000", "-version"})
	require.NoError(t, err)
	assert.Equal(t, serverOptions{configPath: "c.yaml", address: ":9000", showVersion: true}, opts)

	_, err = parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-version"}, &out))
	assert.Equal(t, "source-server version dev\n", out.String())
}

func TestLoadConfig(t *testing.T) {
	_, err := loadConfig(serverOptions{})
	assert.ErrorContains(t, err, "-config is required")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":8088\"\n"), 0o600))
	_, err = loadConfig(serverOptions{configPath: path})
	assert.ErrorContains(t, err, "database.dsn is required")

	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: postgres://localhost/sources
auth:
  allow_anonymous: true
`), 0o600))
	cfg, err := loadConfig(serverOptions{configPath: path, address: ":9999"})
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
}
