package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lensgate/lensgate/internal/ailink"
	"github.com/lensgate/lensgate/internal/config"
)

func dispatcherConfig(creds ...ailink.CredentialConfig) *config.Config {
	return &config.Config{
		Dispatch: config.DispatchConfig{
			AllowFallback:     true,
			RequestsPerMinute: 15,
			RequestsPerHour:   100,
		},
		AILink: ailink.Config{
			DefaultProvider: "openai",
			DefaultTimeout:  time.Second,
			Providers: map[string]ailink.ProviderInstanceConfig{
				"openai": {
					Enabled:     len(creds) > 0,
					AIProvider:  "openai",
					Models:      []string{"gpt-4o-mini"},
					Credentials: creds,
				},
			},
		},
	}
}

func TestBuildDispatcherWithCredentials(t *testing.T) {
	cfg := dispatcherConfig(
		ailink.CredentialConfig{Enabled: true, Label: "primary", APIKey: "sk-primary-1234"},
		ailink.CredentialConfig{Enabled: true, Label: "backup", APIKey: "sk-backup-5678"},
	)

	d, err := buildDispatcher(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, d.Ring().Size())
	require.Equal(t, "auto", d.Arbiter().Mode())
}

func TestBuildDispatcherWithoutCredentialsForcesDegraded(t *testing.T) {
	d, err := buildDispatcher(dispatcherConfig())
	require.NoError(t, err)
	require.Equal(t, "forced_degraded", d.Arbiter().Mode())
}

func TestBuildDispatcherForceRealNeedsCredentials(t *testing.T) {
	cfg := dispatcherConfig()
	cfg.Dispatch.ForceReal = true

	_, err := buildDispatcher(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no enabled credentials")
}
