// Package config loads toolgate.yaml: the model provider, storage location,
// analytics key and the quarantine configs per tenant.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/furisto/toolgate/shared/conv"
)

const FileName = "toolgate.yaml"

type Config struct {
	LogLevel   string           `yaml:"log_level,omitempty"`
	Provider   ProviderConfig   `yaml:"provider"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Analytics  AnalyticsConfig  `yaml:"analytics,omitempty"`
	Quarantine QuarantineConfig `yaml:"quarantine,omitempty"`
}

type ProviderConfig struct {
	Kind      toolcall.ProviderKind `yaml:"kind"`
	Model     string                `yaml:"model,omitempty"`
	APIKeyEnv string                `yaml:"api_key_env,omitempty"`
	BaseURL   string                `yaml:"base_url,omitempty"`
	MaxTokens *int64                `yaml:"max_tokens,omitempty"`
	// QuarantinedModel runs the isolated agent on a different model of the
	// same provider.
	QuarantinedModel string `yaml:"quarantined_model,omitempty"`
}

type StorageConfig struct {
	// Path of the SQLite database. Empty selects the data directory.
	Path string `yaml:"path,omitempty"`
	// EncryptResults seals stored tool results with a key kept in the
	// keyring.
	EncryptResults bool `yaml:"encrypt_results,omitempty"`
}

type AnalyticsConfig struct {
	PosthogKey string `yaml:"posthog_key,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty"`
}

type QuarantineConfig struct {
	Default  quarantine.Config            `yaml:"default,omitempty"`
	Tenants  map[string]quarantine.Config `yaml:"tenants,omitempty"`
	CacheTTL time.Duration                `yaml:"cache_ttl,omitempty"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Provider: ProviderConfig{Kind: toolcall.ProviderKindAnthropic},
	}
}

// DefaultAPIKeyEnv is the environment variable consulted when api_key_env is
// not set.
func DefaultAPIKeyEnv(kind toolcall.ProviderKind) string {
	return strings.ToUpper(string(kind)) + "_API_KEY"
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = toolcall.ProviderKindAnthropic
	}
	if c.Provider.APIKeyEnv == "" {
		c.Provider.APIKeyEnv = DefaultAPIKeyEnv(c.Provider.Kind)
	}
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Provider.Kind.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("provider: %w", err))
	}
	if c.Provider.MaxTokens != nil && *c.Provider.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("provider: max_tokens must be positive"))
	}
	source := c.QuarantineSource()
	if err := source.Default.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("quarantine default: %w", err))
	}
	for tenant, cfg := range source.Tenants {
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("quarantine tenant %q: %w", tenant, err))
		}
	}
	return errors.Join(errs...)
}

// QuarantineSource serves the configured quarantine configs. Tenants inherit
// unset fields from the default config.
func (c *Config) QuarantineSource() quarantine.StaticConfigs {
	source := quarantine.StaticConfigs{
		Default: c.Quarantine.Default.WithDefaults(),
		Tenants: make(map[string]quarantine.Config, len(c.Quarantine.Tenants)),
	}
	for tenant, cfg := range c.Quarantine.Tenants {
		source.Tenants[tenant] = inherit(cfg, source.Default)
	}
	return source
}

func inherit(cfg, base quarantine.Config) quarantine.Config {
	if cfg.MainAgentPrompt == "" {
		cfg.MainAgentPrompt = base.MainAgentPrompt
	}
	if cfg.QuarantinedAgentPrompt == "" {
		cfg.QuarantinedAgentPrompt = base.QuarantinedAgentPrompt
	}
	if cfg.SummaryPrompt == "" {
		cfg.SummaryPrompt = base.SummaryPrompt
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = base.MaxRounds
	}
	return cfg
}

// ClientConfig builds the chat client config for the main agent.
func (p ProviderConfig) ClientConfig(apiKey string) model.ClientConfig {
	return model.ClientConfig{
		Kind:      p.Kind,
		Model:     p.Model,
		APIKey:    apiKey,
		BaseURL:   p.BaseURL,
		MaxTokens: conv.FromPtr(p.MaxTokens),
	}
}
