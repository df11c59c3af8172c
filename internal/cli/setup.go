package cli

import (
	"context"
	"fmt"

	"github.com/TimurManjosov/goflagclient/internal/cache"
	"github.com/TimurManjosov/goflagclient/internal/client"
	"github.com/TimurManjosov/goflagclient/internal/config"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/override"
	"github.com/TimurManjosov/goflagclient/internal/syncer"
)

// BuildClient assembles a ready-to-use SDK client from CLI configuration:
// logger, external cache backend, local overrides and polling mode.
func BuildClient(ctx context.Context, cfg *config.Config, hooks syncer.Hooks) (*client.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	external, err := buildExternalCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	overrides, err := buildOverrides(cfg, log)
	if err != nil {
		return nil, err
	}

	opts := client.Options{
		BaseURL:        cfg.BaseURL,
		PollInterval:   cfg.PollInterval,
		MaxInitWait:    cfg.MaxInitWait,
		CacheTTL:       cfg.CacheTTL,
		RequestTimeout: cfg.RequestTimeout,
		Cache:          external,
		Offline:        cfg.Offline,
		Overrides:      overrides,
		Hooks:          hooks,
		Logger:         log,
		Metrics:        cfg.Metrics,
	}
	switch cfg.PollingMode {
	case "lazyload":
		opts.PollingMode = client.LazyLoad
	case "manual":
		opts.PollingMode = client.ManualPoll
	default:
		opts.PollingMode = client.AutoPoll
	}

	return client.New(cfg.SDKKey, opts)
}

func buildExternalCache(ctx context.Context, cfg *config.Config) (cache.ExternalCache, error) {
	switch cfg.CacheType {
	case "file":
		c, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("creating file cache: %w", err)
		}
		return c, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis cache: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}

func buildOverrides(cfg *config.Config, log logger.Logger) (*override.Overrides, error) {
	if cfg.OverrideFile == "" {
		return nil, nil
	}
	source, err := override.NewFileSource(cfg.OverrideFile, cfg.WatchOverrides, log)
	if err != nil {
		return nil, fmt.Errorf("loading override file: %w", err)
	}

	behavior := override.LocalOverRemote
	switch cfg.OverrideBehavior {
	case "localonly":
		behavior = override.LocalOnly
	case "remoteoverlocal":
		behavior = override.RemoteOverLocal
	}
	return &override.Overrides{Source: source, Behavior: behavior}, nil
}
