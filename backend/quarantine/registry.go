package quarantine

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

const (
	DefaultConfigTTL      = 5 * time.Minute
	defaultConfigCapacity = 1000
)

// ConfigSource loads the quarantine config of a tenant. An empty tenant
// selects the default config.
type ConfigSource interface {
	QuarantineConfig(ctx context.Context, tenant string) (Config, error)
}

// StaticConfigs serves a fixed default config and per tenant overrides.
// Tenants without an entry get the default.
type StaticConfigs struct {
	Default Config
	Tenants map[string]Config
}

func (s StaticConfigs) QuarantineConfig(_ context.Context, tenant string) (Config, error) {
	if cfg, ok := s.Tenants[tenant]; ok {
		return cfg, nil
	}
	return s.Default, nil
}

// ConfigRegistry caches validated configs per tenant.
type ConfigRegistry struct {
	source ConfigSource
	cache  otter.Cache[string, Config]
}

func NewConfigRegistry(source ConfigSource, ttl time.Duration) (*ConfigRegistry, error) {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}

	cache, err := otter.MustBuilder[string, Config](defaultConfigCapacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create config cache: %w", err)
	}

	return &ConfigRegistry{
		source: source,
		cache:  cache,
	}, nil
}

// Get returns the tenant's config with defaults applied. Invalid configs are
// rejected and not cached.
func (r *ConfigRegistry) Get(ctx context.Context, tenant string) (Config, error) {
	if cfg, ok := r.cache.Get(tenant); ok {
		return cfg, nil
	}

	cfg, err := r.source.QuarantineConfig(ctx, tenant)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load quarantine config for tenant %q: %w", tenant, err)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("tenant %q: %w", tenant, err)
	}

	r.cache.Set(tenant, cfg)
	return cfg, nil
}

func (r *ConfigRegistry) Invalidate(tenant string) {
	r.cache.Delete(tenant)
}

func (r *ConfigRegistry) Close() {
	r.cache.Close()
}
