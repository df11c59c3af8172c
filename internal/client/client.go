// Package client is the public-facing SDK facade: typed flag getters with
// detailed evaluation results on top of the sync service and the evaluator.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cache"
	"github.com/TimurManjosov/goflagclient/internal/evaluator"
	"github.com/TimurManjosov/goflagclient/internal/fetcher"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
	"github.com/TimurManjosov/goflagclient/internal/override"
	"github.com/TimurManjosov/goflagclient/internal/syncer"
	"github.com/TimurManjosov/goflagclient/internal/telemetry"
	"github.com/google/uuid"
)

// PollingMode selects how the client keeps its config fresh.
type PollingMode int

const (
	AutoPoll PollingMode = iota
	LazyLoad
	ManualPoll
)

// Options configures a Client. The zero value is usable: auto-poll with
// default intervals against the default CDN.
type Options struct {
	// BaseURL overrides the config CDN endpoint.
	BaseURL string
	// PollingMode selects the freshness policy. Default is AutoPoll.
	PollingMode PollingMode
	// PollInterval is the auto-poll cadence.
	PollInterval time.Duration
	// MaxInitWait bounds auto-poll readiness waiting for the first fetch.
	MaxInitWait time.Duration
	// CacheTTL is the lazy-load freshness window.
	CacheTTL time.Duration
	// RequestTimeout bounds each HTTP fetch attempt.
	RequestTimeout time.Duration
	// Cache is the optional external cache shared across processes.
	Cache cache.ExternalCache
	// Offline starts the client without network access.
	Offline bool
	// DefaultUser is used by evaluations that pass a nil user.
	DefaultUser *model.User
	// Overrides supplies local flag values.
	Overrides *override.Overrides
	// Hooks receive sync lifecycle events.
	Hooks syncer.Hooks
	// Logger defaults to a disabled logger.
	Logger logger.Logger
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
	// Metrics enables Prometheus instrumentation of evaluations and
	// fetches.
	Metrics bool
}

// Client evaluates feature flags against the synchronized config. Safe for
// concurrent use. Close must be called when done.
type Client struct {
	sdkKey      string
	instanceID  string
	log         logger.Logger
	evaluator   *evaluator.Evaluator
	service     *syncer.Service
	overrides   *override.Overrides
	defaultUser *model.User
	metrics     bool
}

// New creates a configured client. An empty SDK key is caller misuse and is
// rejected immediately; with local-only overrides a placeholder key is
// accepted since no fetch ever happens.
func New(sdkKey string, opts Options) (*Client, error) {
	localOnly := opts.Overrides != nil && opts.Overrides.Behavior == override.LocalOnly
	if sdkKey == "" && !localOnly {
		return nil, errors.New("SDK key is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{
		sdkKey:      sdkKey,
		instanceID:  uuid.NewString(),
		log:         log,
		evaluator:   evaluator.New(log),
		overrides:   opts.Overrides,
		defaultUser: opts.DefaultUser,
		metrics:     opts.Metrics,
	}

	var policy syncer.Policy
	switch opts.PollingMode {
	case LazyLoad:
		policy = syncer.LazyLoad(opts.CacheTTL)
	case ManualPoll:
		policy = syncer.ManualPolicy{}
	default:
		policy = syncer.AutoPoll(opts.PollInterval, opts.MaxInitWait)
	}
	if localOnly {
		// Nothing to synchronize; manual mode keeps the poller out of the
		// way and the ready channel closes immediately.
		policy = syncer.ManualPolicy{}
		opts.Offline = true
	}

	f := fetcher.New(fetcher.Options{
		SDKKey:         sdkKey,
		BaseURL:        opts.BaseURL,
		RequestTimeout: opts.RequestTimeout,
		UserAgent:      fmt.Sprintf("goflagclient/%s", c.instanceID),
		Transport:      opts.Transport,
	}, log)
	configCache := cache.NewConfigCache(opts.Cache, sdkKey, log)
	c.service = syncer.New(f, configCache, syncer.Options{
		Policy:  policy,
		Hooks:   opts.Hooks,
		Offline: opts.Offline,
	}, log)

	return c, nil
}

// Ready is closed once the initial config state is settled per the polling
// mode.
func (c *Client) Ready() <-chan struct{} { return c.service.Ready() }

// Refresh unconditionally fetches the latest config. The returned error is
// nil on success.
func (c *Client) Refresh(ctx context.Context) error {
	result, _ := c.service.Refresh(ctx)
	if c.metrics {
		status := "success"
		if !result.Successful {
			status = string(result.ErrorCode)
		}
		telemetry.RecordFetch(status)
	}
	return result.Err
}

// CacheState classifies the freshness of the currently held config.
func (c *Client) CacheState() syncer.CacheState { return c.service.CacheState() }

// IsOffline reports whether HTTP fetches are currently forbidden.
func (c *Client) IsOffline() bool { return c.service.IsOffline() }

// SetOnline re-enables HTTP fetches.
func (c *Client) SetOnline() { c.service.SetOnline() }

// SetOffline forbids HTTP fetches; evaluation keeps serving cached config.
func (c *Client) SetOffline() { c.service.SetOffline() }

// Close releases the client's resources. Further calls on the client serve
// the last known config.
func (c *Client) Close() {
	c.service.Dispose()
	if c.overrides != nil && c.overrides.Source != nil {
		if err := c.overrides.Source.Close(); err != nil {
			c.log.Errorf("error closing the override source: %v", err)
		}
	}
}

// currentSettings resolves the effective setting map: synchronized config
// merged with overrides per their behavior. The second result is the fetch
// time of the underlying record.
func (c *Client) currentSettings(ctx context.Context) (map[string]*model.Setting, time.Time) {
	if c.overrides != nil && c.overrides.Behavior == override.LocalOnly {
		return c.overrides.Apply(nil), time.Time{}
	}

	record := c.service.GetConfig(ctx)
	var settings map[string]*model.Setting
	if !record.IsEmpty() {
		settings = record.Document.Settings
	}
	if c.overrides != nil {
		settings = c.overrides.Apply(settings)
	}
	return settings, record.FetchTime
}

func (c *Client) resolveUser(user *model.User) *model.User {
	if user != nil {
		return user
	}
	return c.defaultUser
}
