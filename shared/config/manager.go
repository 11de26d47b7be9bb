package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/furisto/toolgate/shared"
	"github.com/furisto/toolgate/shared/keyring"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const databaseFileName = "quarantine.db"

var ErrAPIKeyNotFound = errors.New("API key not found")

type Manager struct {
	fs              *afero.Afero
	userInfo        shared.UserInfo
	keyringProvider keyring.Provider
	lookupEnv       func(string) (string, bool)
}

func NewManager(fs *afero.Afero, userInfo shared.UserInfo) *Manager {
	return NewManagerWithKeyring(fs, userInfo, keyring.NewKeyringProvider(), os.LookupEnv)
}

func NewManagerWithKeyring(fs *afero.Afero, userInfo shared.UserInfo, keyringProvider keyring.Provider, lookupEnv func(string) (string, bool)) *Manager {
	return &Manager{
		fs:              fs,
		userInfo:        userInfo,
		keyringProvider: keyringProvider,
		lookupEnv:       lookupEnv,
	}
}

// Path returns explicit when set, otherwise toolgate.yaml in the config
// directory.
func (m *Manager) Path(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	configDir, err := m.userInfo.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, FileName), nil
}

// Load reads the config at path. A missing file yields the defaults.
func (m *Manager) Load(path string) (*Config, error) {
	exists, err := m.fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	cfg := Default()
	if exists {
		content, err := m.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (m *Manager) Save(path string, cfg *Config) error {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := m.fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return m.fs.WriteFile(path, content, 0600)
}

// APIKey resolves the provider's API key from the configured environment
// variable, then from the keyring.
func (m *Manager) APIKey(provider ProviderConfig) (string, error) {
	envName := provider.APIKeyEnv
	if envName == "" {
		envName = DefaultAPIKeyEnv(provider.Kind)
	}
	if value, ok := m.lookupEnv(envName); ok && value != "" {
		return value, nil
	}

	secret, err := m.keyringProvider.Get(keyring.ProviderKey(string(provider.Kind)))
	if err == nil {
		return secret, nil
	}
	if errors.Is(err, &keyring.ErrSecretNotFound{}) {
		return "", fmt.Errorf("%w for %s: set %s or store it in the keyring", ErrAPIKeyNotFound, provider.Kind, envName)
	}
	return "", fmt.Errorf("failed to read API key from keyring: %w", err)
}

func (m *Manager) StoreAPIKey(kind toolcall.ProviderKind, apiKey string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	return m.keyringProvider.Set(keyring.ProviderKey(string(kind)), apiKey)
}

func (m *Manager) DeleteAPIKey(kind toolcall.ProviderKind) error {
	err := m.keyringProvider.Delete(keyring.ProviderKey(string(kind)))
	if err != nil && !errors.Is(err, &keyring.ErrSecretNotFound{}) {
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}

// Keyring returns the secret store backing API keys and the storage key.
func (m *Manager) Keyring() keyring.Provider {
	return m.keyringProvider
}

// StoragePath returns the configured database path or the default one in
// the data directory.
func (m *Manager) StoragePath(cfg *Config) (string, error) {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}
	dataDir, err := m.userInfo.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, databaseFileName), nil
}
