package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_server: https://example.test\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://example.test", cfg.SessionServer)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults().SessionServer, cfg.SessionServer)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_server: https://file.test\n"), 0o644))

	t.Setenv("BEACH_SESSION_SERVER", "https://env.test")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://env.test", cfg.SessionServer)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRejectsEmptySessionServer(t *testing.T) {
	cfg := Defaults()
	cfg.SessionServer = ""
	err := Validate(cfg)
	require.Error(t, err)
}
