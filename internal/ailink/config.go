package ailink

import (
	"fmt"
	"strings"
	"time"
)

// CredentialConfig is one API key entry for a provider instance. Keys are
// consumed in declaration order; disabled entries are skipped when the
// credential ring is built.
type CredentialConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty" mapstructure:"label"`
	APIKey  string `yaml:"api_key" json:"-" mapstructure:"api_key"`
}

// ProviderInstanceConfig configures one named provider instance.
type ProviderInstanceConfig struct {
	Enabled     bool               `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	AIProvider  string             `yaml:"ai_provider" json:"ai_provider" mapstructure:"ai_provider"`
	BaseURL     string             `yaml:"base_url,omitempty" json:"base_url,omitempty" mapstructure:"base_url"`
	Models      []string           `yaml:"models,omitempty" json:"models,omitempty" mapstructure:"models"`
	Credentials []CredentialConfig `yaml:"credentials,omitempty" json:"credentials,omitempty" mapstructure:"credentials"`
}

// Config is the upstream link section of the application configuration.
type Config struct {
	DefaultProvider string                            `yaml:"default_provider" json:"default_provider" mapstructure:"default_provider"`
	DefaultTimeout  time.Duration                     `yaml:"default_timeout" json:"default_timeout" mapstructure:"default_timeout"`
	PromptsDir      string                            `yaml:"prompts_dir,omitempty" json:"prompts_dir,omitempty" mapstructure:"prompts_dir"`
	Providers       map[string]ProviderInstanceConfig `yaml:"providers,omitempty" json:"providers,omitempty" mapstructure:"providers"`
}

// DefaultConfig returns the built-in upstream link defaults. A single openai
// instance is declared but disabled until credentials are supplied.
func DefaultConfig() Config {
	return Config{
		DefaultProvider: "openai",
		DefaultTimeout:  60 * time.Second,
		Providers: map[string]ProviderInstanceConfig{
			"openai": {
				Enabled:    false,
				AIProvider: "openai",
				Models:     []string{"gpt-4o-mini", "gpt-4o"},
			},
		},
	}
}

// Validate checks structural consistency. A disabled default provider is
// allowed; the caller decides whether degraded-only operation is acceptable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultProvider) == "" {
		return fmt.Errorf("ailink: default_provider is required")
	}
	inst, ok := c.Providers[c.DefaultProvider]
	if !ok {
		return fmt.Errorf("ailink: default_provider %q is not declared", c.DefaultProvider)
	}
	if inst.Enabled && strings.TrimSpace(inst.AIProvider) == "" {
		return fmt.Errorf("ailink: provider %q: ai_provider is required", c.DefaultProvider)
	}
	return nil
}

// EnabledSecrets returns the API keys of the enabled credentials for the
// named provider instance, in declaration order.
func (c *Config) EnabledSecrets(name string) []string {
	inst, ok := c.Providers[name]
	if !ok {
		return nil
	}
	secrets := make([]string, 0, len(inst.Credentials))
	for _, cred := range inst.Credentials {
		if !cred.Enabled {
			continue
		}
		if key := strings.TrimSpace(cred.APIKey); key != "" {
			secrets = append(secrets, key)
		}
	}
	return secrets
}
