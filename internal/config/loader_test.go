package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findRepoRootForTest(t *testing.T) string {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatalf("could not locate repo root containing go.mod from %s", cwd)
	return ""
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Regression test: in CI containers the repo checkout may be outside $HOME.
	// When $HOME is not an ancestor of the repo, pathfinder's default home boundary
	// can prevent repo root discovery unless a CI boundary hint is applied.
	t.Run("CIBoundaryHint", func(t *testing.T) {
		repoRoot := findRepoRootForTest(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CI", "true")
		t.Setenv("FULMEN_WORKSPACE_ROOT", repoRoot)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)
	})

	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("lensgate"), "lensgate.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)
		assert.Equal(t, "", cfg.Store.AuthToken)

		// Verify dispatch defaults
		assert.False(t, cfg.Dispatch.ForceReal)
		assert.False(t, cfg.Dispatch.ForceDegraded)
		assert.True(t, cfg.Dispatch.AllowFallback)
		assert.Equal(t, 15, cfg.Dispatch.RequestsPerMinute)
		assert.Equal(t, 100, cfg.Dispatch.RequestsPerHour)

		// Verify ailink defaults
		assert.Equal(t, "openai", cfg.AILink.DefaultProvider)
		assert.Equal(t, 60*time.Second, cfg.AILink.DefaultTimeout)

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		// Verify health defaults
		assert.True(t, cfg.Health.Enabled)

		// Verify debug defaults
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)

		// Verify workers default
		assert.Equal(t, 4, cfg.Workers)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"dispatch": map[string]any{
				"force_degraded": true,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.True(t, cfg.Dispatch.ForceDegraded)

		// Verify non-overridden values remain default
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("LENSGATE_PORT", "3000")
		t.Setenv("LENSGATE_LOG_LEVEL", "warn")
		t.Setenv("LENSGATE_METRICS_ENABLED", "false")
		t.Setenv("LENSGATE_DISPATCH_REQUESTS_PER_MINUTE", "5")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 5, cfg.Dispatch.RequestsPerMinute)
	})

	t.Run("DynamicProviderCredentials", func(t *testing.T) {
		t.Setenv("LENSGATE_AILINK_PROVIDERS_OPENAI_ENABLED", "true")
		t.Setenv("LENSGATE_AILINK_PROVIDERS_OPENAI_CREDENTIALS_0_ENABLED", "true")
		t.Setenv("LENSGATE_AILINK_PROVIDERS_OPENAI_CREDENTIALS_0_LABEL", "primary")
		t.Setenv("LENSGATE_AILINK_PROVIDERS_OPENAI_CREDENTIALS_0_API_KEY", "sk-env-primary")
		t.Setenv("LENSGATE_AILINK_PROVIDERS_OPENAI_CREDENTIALS_1_ENABLED", "true")
		t.Setenv("LENSGATE_AILINK_PROVIDERS_OPENAI_CREDENTIALS_1_API_KEY", "sk-env-backup")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		inst, ok := cfg.AILink.Providers["openai"]
		require.True(t, ok)
		assert.True(t, inst.Enabled)
		require.Len(t, inst.Credentials, 2)
		assert.Equal(t, "primary", inst.Credentials[0].Label)
		assert.Equal(t, "sk-env-primary", inst.Credentials[0].APIKey)
		assert.Equal(t, []string{"sk-env-primary", "sk-env-backup"}, cfg.AILink.EnabledSecrets("openai"))
	})

	// Test config precedence: runtime > env > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("LENSGATE_PORT", "4000")

		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Run("GetConfigReturnsLoadedConfig", func(t *testing.T) {
		retrieved := GetConfig()
		assert.NotNil(t, retrieved)
		assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
		assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
	})
}

func TestEnvSpecs(t *testing.T) {
	// Need to set app identity for env specs
	ctx := context.Background()
	_, err := Load(ctx)
	require.NoError(t, err)

	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
	}

	// Check required Workhorse Standard env vars
	assert.True(t, envVarNames["LENSGATE_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["LENSGATE_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["LENSGATE_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["LENSGATE_METRICS_PORT"], "METRICS_PORT env var must be mapped")
	assert.True(t, envVarNames["LENSGATE_DB_PATH"], "DB_PATH env var must be mapped")
	assert.True(t, envVarNames["LENSGATE_DISPATCH_FORCE_REAL"], "DISPATCH_FORCE_REAL env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	ctx := context.Background()

	t.Run("DurationFromEnv", func(t *testing.T) {
		t.Setenv("LENSGATE_READ_TIMEOUT", "45s")
		t.Setenv("LENSGATE_SHUTDOWN_TIMEOUT", "5m")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
	})
}

func TestConfigReload(t *testing.T) {
	ctx := context.Background()

	cfg1, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg1)
	initialPort := cfg1.Server.Port

	overrides := map[string]any{
		"server": map[string]any{
			"port": initialPort + 1000,
		},
	}

	cfg2, err := Load(ctx, overrides)
	require.NoError(t, err)
	require.NotNil(t, cfg2)

	assert.Equal(t, initialPort+1000, cfg2.Server.Port)

	current := GetConfig()
	assert.Equal(t, cfg2.Server.Port, current.Server.Port)
}
