package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goflagclient/internal/logger"
)

const minimalConfig = `{"f":{"flag":{"t":0,"v":{"b":true}}}}`

func TestSerializeRoundTrip(t *testing.T) {
	fetchTime := time.UnixMilli(1718000000000)
	record := &ProjectConfig{
		FetchTime:  fetchTime,
		ETag:       `"abc123"`,
		ConfigJSON: minimalConfig,
	}

	blob := Serialize(record)
	require.Equal(t, "1718000000000\n\"abc123\"\n"+minimalConfig, blob)

	decoded, err := Deserialize(blob)
	require.NoError(t, err)
	assert.True(t, decoded.FetchTime.Equal(fetchTime))
	assert.Equal(t, record.ETag, decoded.ETag)
	assert.Equal(t, record.ConfigJSON, decoded.ConfigJSON)
	require.NotNil(t, decoded.Document)
	assert.Contains(t, decoded.Document.Settings, "flag")
}

func TestSerializeEmptyRecord(t *testing.T) {
	blob := Serialize(Empty)
	require.Equal(t, "0\n\n", blob)

	decoded, err := Deserialize(blob)
	require.NoError(t, err)
	assert.True(t, decoded.IsEmpty())
	assert.True(t, decoded.FetchTime.IsZero())
}

func TestDeserializeMalformed(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"no separators", "1718000000000"},
		{"one separator", "1718000000000\netag"},
		{"bad timestamp", "not-a-number\netag\n" + minimalConfig},
		{"bad config JSON", "1718000000000\netag\n{broken"},
		{"no settings block", "1718000000000\netag\n{}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Deserialize(tc.blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestContentEquals(t *testing.T) {
	withETag := func(etag, json string) *ProjectConfig {
		return &ProjectConfig{ETag: etag, ConfigJSON: json}
	}

	// ETag comparison wins even when the JSON text differs.
	assert.True(t, ContentEquals(withETag(`"a"`, "x"), withETag(`"a"`, "y")))
	assert.False(t, ContentEquals(withETag(`"a"`, "x"), withETag(`"b"`, "x")))

	// Without ETags the raw JSON decides.
	assert.True(t, ContentEquals(withETag("", "x"), withETag("", "x")))
	assert.False(t, ContentEquals(withETag("", "x"), withETag("", "y")))

	// Mixed: one ETag missing falls back to JSON.
	assert.True(t, ContentEquals(withETag(`"a"`, "x"), withETag("", "x")))

	assert.True(t, ContentEquals(nil, nil))
	assert.False(t, ContentEquals(nil, Empty))
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("test-sdk-key")
	assert.True(t, strings.HasPrefix(key, "goflag_"))
	assert.Len(t, key, len("goflag_")+16)

	// Stable across calls and distinct across SDK keys.
	assert.Equal(t, key, CacheKey("test-sdk-key"))
	assert.NotEqual(t, key, CacheKey("other-sdk-key"))
}

func TestConfigCacheWithoutExternal(t *testing.T) {
	c := NewConfigCache(nil, "sdk", logger.Nop())

	outcome, record := c.Get(context.Background())
	assert.Equal(t, OutcomeAbsent, outcome)
	assert.True(t, record.IsEmpty())

	stored, err := Deserialize(Serialize(&ProjectConfig{
		FetchTime:  time.Now(),
		ConfigJSON: minimalConfig,
	}))
	require.NoError(t, err)
	c.Set(context.Background(), stored)

	outcome, record = c.Get(context.Background())
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Same(t, stored, record)
	assert.Same(t, stored, c.Latest())
}

func TestConfigCacheObservesExternalChange(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryCache()

	writer := NewConfigCache(shared, "sdk", logger.Nop())
	reader := NewConfigCache(shared, "sdk", logger.Nop())

	record, err := Deserialize("1718000000000\n\"v1\"\n" + minimalConfig)
	require.NoError(t, err)
	writer.Set(ctx, record)

	outcome, observed := reader.Get(ctx)
	require.Equal(t, OutcomeChanged, outcome)
	assert.Equal(t, `"v1"`, observed.ETag)

	// No further writes, the second sync-up reports no change.
	outcome, _ = reader.Get(ctx)
	assert.Equal(t, OutcomeUnchanged, outcome)

	updated := record.WithFetchTime(record.FetchTime.Add(time.Minute))
	updated.ETag = `"v2"`
	writer.Set(ctx, updated)

	outcome, observed = reader.Get(ctx)
	require.Equal(t, OutcomeChanged, outcome)
	assert.Equal(t, `"v2"`, observed.ETag)
}

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("backend down")
}

func (brokenCache) Set(ctx context.Context, key string, value string) error {
	return errors.New("backend down")
}

func TestConfigCacheDegradesOnBrokenBackend(t *testing.T) {
	ctx := context.Background()
	c := NewConfigCache(brokenCache{}, "sdk", logger.Nop())

	record, err := Deserialize("1718000000000\n\n" + minimalConfig)
	require.NoError(t, err)
	c.Set(ctx, record)

	// The failed write-through must not lose the in-process record.
	outcome, observed := c.Get(ctx)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Same(t, record, observed)
}

func TestConfigCacheIgnoresMalformedExternalBlob(t *testing.T) {
	ctx := context.Background()
	external := NewMemoryCache()
	c := NewConfigCache(external, "sdk", logger.Nop())

	record, err := Deserialize("1718000000000\n\n" + minimalConfig)
	require.NoError(t, err)
	c.Set(ctx, record)

	require.NoError(t, external.Set(ctx, CacheKey("sdk"), "garbage"))

	outcome, observed := c.Get(ctx)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Same(t, record, observed)
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	fc, err := NewFileCache(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	ctx := context.Background()
	key := CacheKey("sdk")

	_, found, err := fc.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, fc.Set(ctx, key, "first"))
	blob, found, err := fc.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", blob)

	require.NoError(t, fc.Set(ctx, key, "second"))
	blob, _, err = fc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "second", blob)

	// The atomic write must not leave temp files behind.
	entries, err := os.ReadDir(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key+".cache", entries[0].Name())
}

func TestNewFileCacheRejectsEmptyDir(t *testing.T) {
	_, err := NewFileCache("")
	require.Error(t, err)
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	record := &ProjectConfig{FetchTime: now.Add(-2 * time.Minute)}

	assert.True(t, record.IsExpired(time.Minute, now))
	assert.False(t, record.IsExpired(5*time.Minute, now))
	assert.True(t, (*ProjectConfig)(nil).IsExpired(time.Minute, now))
}
