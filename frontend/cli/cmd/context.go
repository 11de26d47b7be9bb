package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/furisto/toolgate/backend/analytics"
	"github.com/furisto/toolgate/backend/memory"
	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/backend/secret"
	"github.com/furisto/toolgate/frontend/cli/pkg/fail"
	"github.com/furisto/toolgate/shared"
	"github.com/furisto/toolgate/shared/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

type contextKey string

const (
	ContextKeyFileSystem      contextKey = "file_system"
	ContextKeyUserInfo        contextKey = "user_info"
	ContextKeyConfigManager   contextKey = "config_manager"
	ContextKeyConfig          contextKey = "config"
	ContextKeyOutputRenderer  contextKey = "output_renderer"
	ContextKeyChatClient      contextKey = "chat_client"
	ContextKeyStore           contextKey = "store"
	ContextKeyAnalytics       contextKey = "analytics"
	ContextKeyMetrics         contextKey = "metrics"
	ContextKeyDisableFileLogs contextKey = "disable_file_logs"
)

// RecordStore persists quarantine sessions and reads them back.
type RecordStore interface {
	quarantine.Store
	memory.RecordReader
}

func getFileSystem(ctx context.Context) *afero.Afero {
	if fs, ok := ctx.Value(ContextKeyFileSystem).(*afero.Afero); ok {
		return fs
	}
	return &afero.Afero{Fs: afero.NewOsFs()}
}

func getUserInfo(ctx context.Context) shared.UserInfo {
	if userInfo, ok := ctx.Value(ContextKeyUserInfo).(shared.UserInfo); ok {
		return userInfo
	}
	return shared.NewDefaultUserInfo(getFileSystem(ctx))
}

func getConfigManager(ctx context.Context) *config.Manager {
	if manager, ok := ctx.Value(ContextKeyConfigManager).(*config.Manager); ok {
		return manager
	}
	return config.NewManager(getFileSystem(ctx), getUserInfo(ctx))
}

func getConfig(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(ContextKeyConfig).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func getRenderer(ctx context.Context) OutputRenderer {
	return ctx.Value(ContextKeyOutputRenderer).(OutputRenderer)
}

func getAnalytics(ctx context.Context) analytics.Client {
	if client, ok := ctx.Value(ContextKeyAnalytics).(analytics.Client); ok {
		return client
	}
	return analytics.NoopClient{}
}

func getMetrics(ctx context.Context) *prometheus.Registry {
	if registry, ok := ctx.Value(ContextKeyMetrics).(*prometheus.Registry); ok {
		return registry
	}
	return prometheus.NewRegistry()
}

// openStore returns the injected store or opens the SQLite database from the
// config. The returned close function is never nil.
func openStore(ctx context.Context) (RecordStore, func(), error) {
	if store, ok := ctx.Value(ContextKeyStore).(RecordStore); ok {
		return store, func() {}, nil
	}

	manager, cfg := getConfigManager(ctx), getConfig(ctx)
	path, err := manager.StoragePath(cfg)
	if err != nil {
		return nil, nil, err
	}
	var opts []memory.StoreOption
	if cfg.Storage.EncryptResults {
		cipher, err := secret.LoadOrCreateClient(manager.Keyring())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, memory.WithCipher(cipher))
	}
	store, err := memory.NewSQLiteStore(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}, nil
}

// newChatClients returns the clients of the main and the quarantined agent.
// An injected client serves both.
func newChatClients(ctx context.Context) (model.ChatClient, model.ChatClient, error) {
	if client, ok := ctx.Value(ContextKeyChatClient).(model.ChatClient); ok {
		return client, client, nil
	}

	cfg := getConfig(ctx)
	apiKey, err := getConfigManager(ctx).APIKey(cfg.Provider)
	if err != nil {
		if errors.Is(err, config.ErrAPIKeyNotFound) {
			return nil, nil, fail.NewAPIKeyError(cfg.Provider.Kind, cfg.Provider.APIKeyEnv, err)
		}
		return nil, nil, err
	}

	opts := []model.ProviderOption{
		model.WithLogger(slog.Default()),
		model.WithMetrics(getMetrics(ctx)),
	}

	clientConfig := cfg.Provider.ClientConfig(apiKey)
	privileged, err := model.NewChatClient(ctx, clientConfig, opts...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Provider.QuarantinedModel == "" {
		return privileged, privileged, nil
	}

	clientConfig.Model = cfg.Provider.QuarantinedModel
	quarantined, err := model.NewChatClient(ctx, clientConfig, opts...)
	if err != nil {
		return nil, nil, err
	}
	return privileged, quarantined, nil
}
