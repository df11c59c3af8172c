// Package cache persists fetched config documents. It wraps a raw external
// key/value cache with an in-memory shadow copy, the record serialization
// format, and change detection across processes sharing the same cache.
package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/model"
)

// ProjectConfig is one cached fetch outcome: the raw config JSON, its parsed
// document, the fetch timestamp and the HTTP ETag. The zero value is the
// "never successfully fetched" sentinel.
type ProjectConfig struct {
	FetchTime  time.Time
	ETag       string
	ConfigJSON string
	Document   *model.ConfigDocument
}

// Empty is the never-fetched sentinel record.
var Empty = &ProjectConfig{}

// IsEmpty reports whether the record carries no config document.
func (c *ProjectConfig) IsEmpty() bool {
	return c == nil || c.Document == nil
}

// WithFetchTime returns a copy of the record stamped with a new fetch time.
// Content and ETag are unchanged.
func (c *ProjectConfig) WithFetchTime(t time.Time) *ProjectConfig {
	copied := *c
	copied.FetchTime = t
	return &copied
}

// IsExpired reports whether the record is older than the given window.
func (c *ProjectConfig) IsExpired(window time.Duration, now time.Time) bool {
	if c == nil {
		return true
	}
	return c.FetchTime.Add(window).Before(now)
}

// ContentEquals compares two records for change-detection purposes. When
// both records carry an ETag the comparison is ETag-based regardless of JSON
// text differences; otherwise it falls back to raw JSON string equality.
func ContentEquals(a, b *ProjectConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ETag != "" && b.ETag != "" {
		return a.ETag == b.ETag
	}
	return a.ConfigJSON == b.ConfigJSON
}

// ErrMalformedRecord indicates a persisted record blob that cannot be
// decoded.
var ErrMalformedRecord = errors.New("malformed cache record")

// Serialize encodes the record into the persisted wire format:
//
//	<timestamp-ms>\n<ETag-or-empty>\n<raw-config-JSON-or-empty>
func Serialize(c *ProjectConfig) string {
	ts := int64(0)
	if !c.FetchTime.IsZero() {
		ts = c.FetchTime.UnixMilli()
	}
	return strconv.FormatInt(ts, 10) + "\n" + c.ETag + "\n" + c.ConfigJSON
}

// Deserialize decodes a persisted record blob. It fails when fewer than two
// newline separators are present, the timestamp segment is not a valid
// integer, or the embedded config JSON does not parse.
func Deserialize(blob string) (*ProjectConfig, error) {
	tsPart, rest, ok := strings.Cut(blob, "\n")
	if !ok {
		return nil, fmt.Errorf("%w: missing separators", ErrMalformedRecord)
	}
	etag, configJSON, ok := strings.Cut(rest, "\n")
	if !ok {
		return nil, fmt.Errorf("%w: missing separators", ErrMalformedRecord)
	}

	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedRecord, tsPart)
	}

	record := &ProjectConfig{
		ETag:       etag,
		ConfigJSON: configJSON,
	}
	if ts > 0 {
		record.FetchTime = time.UnixMilli(ts)
	}
	if configJSON != "" {
		doc, err := model.ParseConfigDocument([]byte(configJSON))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		record.Document = doc
	}
	return record, nil
}
