package syncer

import (
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cache"
)

// CacheState classifies the freshness of the currently held config record.
type CacheState int

const (
	// NoFlagData means no config has ever been fetched or cached.
	NoFlagData CacheState = iota
	// CachedOnly means cached data is available but older than the policy's
	// freshness window.
	CachedOnly
	// UpToDate means the cached data is within the freshness window.
	UpToDate
)

func (s CacheState) String() string {
	switch s {
	case NoFlagData:
		return "no flag data"
	case CachedOnly:
		return "cached only"
	default:
		return "up to date"
	}
}

// Policy decides, per polling mode, how fresh a record counts as and whether
// a config read must trigger a fetch first.
type Policy interface {
	// CacheState classifies the record's freshness under this policy.
	CacheState(record *cache.ProjectConfig, now time.Time) CacheState
	// ShouldFetch reports whether a config read should refresh before
	// serving the record.
	ShouldFetch(record *cache.ProjectConfig, now time.Time) bool
}

const (
	// DefaultPollInterval is the auto-poll cadence used when none is given.
	DefaultPollInterval = 60 * time.Second
	// DefaultMaxInitWait bounds how long auto-poll readiness waits for the
	// first fetch.
	DefaultMaxInitWait = 5 * time.Second
	// DefaultCacheTTL is the lazy-load freshness window used when none is
	// given.
	DefaultCacheTTL = 60 * time.Second
)

// AutoPollPolicy refreshes the config on a fixed background interval. Config
// reads never fetch; they serve whatever the poller last stored.
type AutoPollPolicy struct {
	Interval    time.Duration
	MaxInitWait time.Duration
}

// AutoPoll returns an auto-poll policy, substituting defaults for
// non-positive durations.
func AutoPoll(interval, maxInitWait time.Duration) AutoPollPolicy {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxInitWait <= 0 {
		maxInitWait = DefaultMaxInitWait
	}
	return AutoPollPolicy{Interval: interval, MaxInitWait: maxInitWait}
}

func (p AutoPollPolicy) CacheState(record *cache.ProjectConfig, now time.Time) CacheState {
	return windowedCacheState(record, p.Interval, now)
}

func (p AutoPollPolicy) ShouldFetch(*cache.ProjectConfig, time.Time) bool {
	return false
}

// LazyLoadPolicy refreshes on demand: a config read fetches first when the
// cached record is older than the TTL.
type LazyLoadPolicy struct {
	TTL time.Duration
}

// LazyLoad returns a lazy-load policy, substituting the default TTL for a
// non-positive one.
func LazyLoad(ttl time.Duration) LazyLoadPolicy {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return LazyLoadPolicy{TTL: ttl}
}

func (p LazyLoadPolicy) CacheState(record *cache.ProjectConfig, now time.Time) CacheState {
	return windowedCacheState(record, p.TTL, now)
}

func (p LazyLoadPolicy) ShouldFetch(record *cache.ProjectConfig, now time.Time) bool {
	return record.IsExpired(p.TTL, now)
}

// ManualPolicy never fetches on its own; the caller drives every refresh.
// Cached data never counts as up to date because nothing bounds its age.
type ManualPolicy struct{}

func (ManualPolicy) CacheState(record *cache.ProjectConfig, _ time.Time) CacheState {
	if record.IsEmpty() {
		return NoFlagData
	}
	return CachedOnly
}

func (ManualPolicy) ShouldFetch(*cache.ProjectConfig, time.Time) bool {
	return false
}

func windowedCacheState(record *cache.ProjectConfig, window time.Duration, now time.Time) CacheState {
	switch {
	case record.IsEmpty():
		return NoFlagData
	case record.IsExpired(window, now):
		return CachedOnly
	default:
		return UpToDate
	}
}
