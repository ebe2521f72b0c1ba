package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DBSCHEMA_STATE", "DBSCHEMA_PRINCIPAL", "DBSCHEMA_MAX_DEPTH", "LOG_LEVEL", "LOG_FORMAT", "LISTEN_ADDR", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "DBSCHEMA_API_KEYS", "DBSCHEMA_JWT_SECRET", "DBSCHEMA_ADMINS"} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultStatePath, cfg.StatePath)
	assert.Equal(t, "user", cfg.Principal)
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.UsesSQLite())
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.False(t, cfg.HasCredentials())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Credentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("DBSCHEMA_API_KEYS", "alice=k1, root = k2")
	t.Setenv("DBSCHEMA_ADMINS", "root,")
	t.Setenv("DBSCHEMA_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, map[string]string{"k1": "alice", "k2": "root"}, cfg.APIKeys)
	assert.Equal(t, []string{"root"}, cfg.Admins)
	assert.Empty(t, cfg.Warnings)

	t.Setenv("DBSCHEMA_ADMINS", "")
	t.Setenv("DBSCHEMA_JWT_SECRET", "short")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.Warnings, 2)

	for _, bad := range []string{"alice", "=k1", "alice=", "a=k,b=k"} {
		t.Setenv("DBSCHEMA_API_KEYS", bad)
		_, err = LoadFromEnv()
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "DBSCHEMA_API_KEYS")
	}
}

func TestLoadFromEnv_RateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)

	t.Setenv("RATE_LIMIT_RPS", "fast")
	_, err = LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("DBSCHEMA_STATE", "/var/lib/dbschema/state.sqlite")
	t.Setenv("DBSCHEMA_PRINCIPAL", "alice")
	t.Setenv("DBSCHEMA_MAX_DEPTH", "10")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.UsesSQLite())
	assert.Equal(t, "alice", cfg.Principal)
	assert.Equal(t, 10, cfg.MaxDepth)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestLoadFromEnv_InvalidMaxDepth(t *testing.T) {
	for _, v := range []string{"abc", "0", "-3"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DBSCHEMA_MAX_DEPTH", v)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "DBSCHEMA_MAX_DEPTH")
		})
	}
}

func TestLoadFromEnv_Warnings(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("DBSCHEMA_MAX_DEPTH", "5000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Len(t, cfg.Warnings, 2)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, (&Config{LogLevel: tt.in}).SlogLevel())
		})
	}
}

func TestUsesSQLite(t *testing.T) {
	for path, want := range map[string]bool{
		"state.db":      true,
		"state.SQLITE":  true,
		"x.sqlite3":     true,
		"state.yaml":    false,
		"state":         false,
		"dir.db/state.": false,
	} {
		assert.Equal(t, want, (&Config{StatePath: path}).UsesSQLite(), path)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nDBSCHEMA_TEST_A=\"quoted\"\nDBSCHEMA_TEST_B='single'\nDBSCHEMA_TEST_C=plain\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DBSCHEMA_TEST_C", "from-env")
	require.NoError(t, os.Unsetenv("DBSCHEMA_TEST_A"))
	require.NoError(t, os.Unsetenv("DBSCHEMA_TEST_B"))
	t.Cleanup(func() {
		_ = os.Unsetenv("DBSCHEMA_TEST_A")
		_ = os.Unsetenv("DBSCHEMA_TEST_B")
	})

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "quoted", os.Getenv("DBSCHEMA_TEST_A"))
	assert.Equal(t, "single", os.Getenv("DBSCHEMA_TEST_B"))
	assert.Equal(t, "from-env", os.Getenv("DBSCHEMA_TEST_C"))
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope")))
}
