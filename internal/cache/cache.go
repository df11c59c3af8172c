package cache

import (
	"context"
	"fmt"

	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/cespare/xxhash/v2"
)

// ExternalCache is the pluggable raw cache the SDK persists config records
// into. Implementations may be process-local or shared (file, Redis).
type ExternalCache interface {
	// Get returns the stored blob for key. The second return value is false
	// when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores the blob under key, replacing any previous value.
	Set(ctx context.Context, key string, value string) error
}

// LookupOutcome is the three-way result of a cache sync-up.
type LookupOutcome int

const (
	// OutcomeUnchanged means the external cache holds the same record the
	// in-memory shadow already has (or could not be read).
	OutcomeUnchanged LookupOutcome = iota
	// OutcomeChanged means another process wrote a different record; the
	// returned config carries the new payload.
	OutcomeChanged
	// OutcomeAbsent means the external cache has no usable record.
	OutcomeAbsent
)

// ConfigCache wraps an external cache with an in-memory shadow copy. The
// shadow is owned exclusively by this type and mutated only by Set and a
// Get that observes an external change.
type ConfigCache struct {
	external ExternalCache
	key      string
	log      logger.Logger

	latest     *ProjectConfig
	serialized string
}

// CacheKey derives the namespaced external-cache key for an SDK key. The
// hash keeps SDK keys out of shared cache backends; it is not part of any
// wire contract.
func CacheKey(sdkKey string) string {
	return fmt.Sprintf("goflag_%016x", xxhash.Sum64String(sdkKey+"_config_v1"))
}

// NewConfigCache creates a ConfigCache on top of the given external cache.
// A nil external cache is valid and degrades to the in-memory shadow only.
func NewConfigCache(external ExternalCache, sdkKey string, log logger.Logger) *ConfigCache {
	return &ConfigCache{
		external: external,
		key:      CacheKey(sdkKey),
		log:      log,
		latest:   Empty,
	}
}

// Get syncs up with the external cache and reports whether its content
// changed since the last observation. Read or decode failures are logged and
// reported as OutcomeUnchanged with the current shadow record, so a broken
// cache backend never breaks evaluation.
func (c *ConfigCache) Get(ctx context.Context) (LookupOutcome, *ProjectConfig) {
	if c.external == nil {
		if c.latest.IsEmpty() {
			return OutcomeAbsent, c.latest
		}
		return OutcomeUnchanged, c.latest
	}

	blob, found, err := c.external.Get(ctx, c.key)
	if err != nil {
		c.log.Errorf("error occurred while reading the cache: %v", err)
		return OutcomeUnchanged, c.latest
	}
	if !found || blob == "" {
		if c.latest.IsEmpty() {
			return OutcomeAbsent, c.latest
		}
		return OutcomeUnchanged, c.latest
	}
	if blob == c.serialized {
		return OutcomeUnchanged, c.latest
	}

	record, err := Deserialize(blob)
	if err != nil {
		c.log.Errorf("error occurred while decoding the cache record: %v", err)
		return OutcomeUnchanged, c.latest
	}

	c.latest = record
	c.serialized = blob
	return OutcomeChanged, record
}

// Set updates the in-memory shadow and writes the record through to the
// external cache. A write failure is logged; the shadow keeps the new record
// so the current process still observes it.
func (c *ConfigCache) Set(ctx context.Context, config *ProjectConfig) {
	c.latest = config
	c.serialized = Serialize(config)

	if c.external == nil {
		return
	}
	if err := c.external.Set(ctx, c.key, c.serialized); err != nil {
		c.log.Errorf("error occurred while writing the cache: %v", err)
	}
}

// Latest returns the in-memory shadow record without touching the external
// cache. Never nil.
func (c *ConfigCache) Latest() *ProjectConfig {
	return c.latest
}
