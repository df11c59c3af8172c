package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cache"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
)

const minimalConfig = `{"f":{"enabled":{"t":0,"v":{"b":true},"i":"v1"}}}`

func newTestFetcher(t *testing.T, url string) *ConfigFetcher {
	t.Helper()
	return New(Options{
		SDKKey:  "test-sdk-key",
		BaseURL: url,
	}, logger.Nop())
}

// cachedRecord builds a populated record the way the fetch and deserialize
// paths do: with the parsed document attached.
func cachedRecord(t *testing.T, etag string) *cache.ProjectConfig {
	t.Helper()
	doc, err := model.ParseConfigDocument([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return &cache.ProjectConfig{
		FetchTime:  time.Now().Add(-time.Hour),
		ETag:       etag,
		ConfigJSON: minimalConfig,
		Document:   doc,
	}
}

func TestFetchSuccess(t *testing.T) {
	var gotPath, gotIfNoneMatch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		w.Header().Set("ETag", `"etag-1"`)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), cache.Empty)

	if result.Status != StatusFetched {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	if gotPath != "/v1/configs/test-sdk-key/flags.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotIfNoneMatch != "" {
		t.Errorf("unexpected If-None-Match %q on empty cache", gotIfNoneMatch)
	}
	if result.Config.ETag != `"etag-1"` {
		t.Errorf("etag = %q", result.Config.ETag)
	}
	if result.Config.Document == nil || result.Config.Document.Settings["enabled"] == nil {
		t.Errorf("document not parsed")
	}
	if result.Config.FetchTime.IsZero() {
		t.Errorf("fetch time not stamped")
	}
}

func TestFetchSendsETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"etag-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		t.Errorf("missing conditional header")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	current := cachedRecord(t, `"etag-1"`)
	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), current)

	// A populated record must never be mistaken for an empty local cache.
	if result.Status != StatusNotModified {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	if result.ErrorCode == ErrCodeNotModifiedWithEmptyCache {
		t.Fatalf("populated cache classified as empty on 304")
	}
	if result.Config.ETag != current.ETag || result.Config.ConfigJSON != current.ConfigJSON {
		t.Errorf("content changed on 304")
	}
	if !result.Config.FetchTime.After(current.FetchTime) {
		t.Errorf("fetch time not refreshed on 304")
	}
}

func TestFetchNotModifiedWithEmptyCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), cache.Empty)

	if result.Status != StatusFailure {
		t.Fatalf("status = %v", result.Status)
	}
	if result.ErrorCode != ErrCodeNotModifiedWithEmptyCache {
		t.Errorf("code = %s", result.ErrorCode)
	}
}

func TestFetchStatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode ErrorCode
		wantBump bool
	}{
		{http.StatusForbidden, ErrCodeInvalidSDKKey, true},
		{http.StatusNotFound, ErrCodeInvalidSDKKey, true},
		{http.StatusInternalServerError, ErrCodeUnexpectedHTTPResponse, false},
		{http.StatusBadGateway, ErrCodeUnexpectedHTTPResponse, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			prev := cachedRecord(t, "")
			f := newTestFetcher(t, srv.URL)
			result := f.Fetch(context.Background(), prev)

			if result.Status != StatusFailure {
				t.Fatalf("status = %v", result.Status)
			}
			if result.ErrorCode != tt.wantCode {
				t.Errorf("code = %s, want %s", result.ErrorCode, tt.wantCode)
			}
			if result.Config.ConfigJSON != prev.ConfigJSON {
				t.Errorf("previous record content not preserved")
			}
			bumped := result.Config.FetchTime.After(prev.FetchTime)
			if bumped != tt.wantBump {
				t.Errorf("fetch time bumped = %v, want %v", bumped, tt.wantBump)
			}
		})
	}
}

func TestFetchInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer srv.Close()

	prev := cachedRecord(t, "")
	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), prev)

	if result.ErrorCode != ErrCodeInvalidResponseContent {
		t.Fatalf("code = %s, err = %v", result.ErrorCode, result.Err)
	}
	if result.Config.ConfigJSON != prev.ConfigJSON {
		t.Errorf("previous record discarded on invalid body")
	}
	if result.Config.FetchTime.After(prev.FetchTime) {
		t.Errorf("fetch time must not be bumped on invalid body")
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := New(Options{
		SDKKey:         "test-sdk-key",
		BaseURL:        srv.URL,
		RequestTimeout: 50 * time.Millisecond,
	}, logger.Nop())
	result := f.Fetch(context.Background(), cache.Empty)

	if result.ErrorCode != ErrCodeRequestTimeout {
		t.Fatalf("code = %s, err = %v", result.ErrorCode, result.Err)
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), cache.Empty)

	if result.ErrorCode != ErrCodeRequestFailure {
		t.Fatalf("code = %s, err = %v", result.ErrorCode, result.Err)
	}
}

func TestFetchForcedRedirect(t *testing.T) {
	var secondHits int
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondHits++
		fmt.Fprint(w, minimalConfig)
	}))
	defer second.Close()

	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"p":{"u":"%s","r":2},"f":{}}`, second.URL)
	}))
	defer first.Close()

	f := newTestFetcher(t, first.URL)
	result := f.Fetch(context.Background(), cache.Empty)

	if result.Status != StatusFetched {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	if secondHits != 1 {
		t.Errorf("redirect target hit %d times, want 1", secondHits)
	}
	if f.BaseURL() != second.URL {
		t.Errorf("base URL not adopted: %q", f.BaseURL())
	}
	if result.Config.Document.Settings["enabled"] == nil {
		t.Errorf("final response should come from the redirect target")
	}
}

func TestFetchCustomURLIgnoresSoftRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"p":{"u":"https://elsewhere.invalid","r":1},"f":{}}`)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), cache.Empty)

	if result.Status != StatusFetched {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	if f.BaseURL() != srv.URL {
		t.Errorf("custom base URL must not be overridden by a non-forced redirect, got %q", f.BaseURL())
	}
}

func TestFetchRedirectLoopCapped(t *testing.T) {
	var hits int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		// Point the redirect at an alias of ourselves so it always differs
		// from the currently configured base URL.
		fmt.Fprintf(w, `{"p":{"u":"%s/loop%d","r":2},"f":{}}`, srv.URL, hits)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	result := f.Fetch(context.Background(), cache.Empty)

	if result.Status != StatusFetched {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	if hits != maxRedirectFollows+1 {
		t.Errorf("server hit %d times, want %d", hits, maxRedirectFollows+1)
	}
}
