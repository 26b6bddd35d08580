package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "OASGRAPH", EnvPrefix("oasgraph"))
	assert.Equal(t, "PET_GATEWAY", EnvPrefix("pet-gateway"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OASGRAPH_CONFIG_FILE", "")
	cfg, err := Load("oasgraph", "")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), *cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "oasgraph.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
document: ./petstore.yaml
listen_addr: ":9090"
request_timeout: 3s
forward_headers: [Authorization]
retry_attempts: 5
log_level: debug
`), 0o644))

	t.Setenv("OASGRAPH_CONFIG_FILE", file)
	t.Setenv("OASGRAPH_LISTEN_ADDR", ":7070")
	t.Setenv("OASGRAPH_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("oasgraph", "")
	require.NoError(t, err)

	want := Default()
	want.ConfigFile = file
	want.Document = "./petstore.yaml"
	want.ListenAddr = ":7070"
	want.RequestTimeout = 3 * time.Second
	want.ForwardHeaders = []string{"Authorization"}
	want.CORSOrigins = []string{"https://a.example", "https://b.example"}
	want.RetryAttempts = 5
	want.LogLevel = "debug"
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, slog.LevelDebug, cfg.ParsedLogLevel())
	require.NoError(t, cfg.Validate())
}

func TestLoadExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("document: explicit.json\n"), 0o644))
	t.Setenv("OASGRAPH_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))

	cfg, err := Load("oasgraph", explicit)
	require.NoError(t, err)
	assert.Equal(t, "explicit.json", cfg.Document)
	assert.Equal(t, explicit, cfg.ConfigFile)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("oasgraph", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("retry_attempts: [1"), 0o644))
	_, err = Load("oasgraph", bad)
	require.Error(t, err)

	t.Setenv("OASGRAPH_RETRY_ATTEMPTS", "many")
	_, err = Load("oasgraph", "")
	require.Error(t, err)
}

func TestValidateAndLogLevel(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())
	cfg.Document = "api.yaml"
	require.NoError(t, cfg.Validate())
	cfg.RetryAttempts = 0
	require.Error(t, cfg.Validate())

	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "verbose": slog.LevelInfo,
	} {
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.ParsedLogLevel(), level)
	}
}
