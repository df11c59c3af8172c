// Package fetcher downloads config documents over HTTP with conditional
// requests and base-URL redirect following.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cache"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
)

// DefaultBaseURL is the global config CDN endpoint used when the caller does
// not override the base URL.
const DefaultBaseURL = "https://cdn.goflagclient.com"

// maxRedirectFollows caps how many times a single fetch follows a base-URL
// redirect before giving up with a loop warning.
const maxRedirectFollows = 2

const defaultRequestTimeout = 30 * time.Second

// FetchStatus classifies the outcome of a single fetch attempt.
type FetchStatus int

const (
	StatusFetched FetchStatus = iota
	StatusNotModified
	StatusFailure
)

func (s FetchStatus) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusNotModified:
		return "not modified"
	default:
		return "failure"
	}
}

// ErrorCode identifies the failure class of an unsuccessful fetch.
type ErrorCode string

const (
	ErrCodeNone                      ErrorCode = ""
	ErrCodeInvalidResponseContent    ErrorCode = "INVALID_HTTP_RESPONSE_CONTENT"
	ErrCodeNotModifiedWithEmptyCache ErrorCode = "INVALID_HTTP_RESPONSE_WHEN_LOCAL_CACHE_IS_EMPTY"
	ErrCodeInvalidSDKKey             ErrorCode = "INVALID_SDK_KEY"
	ErrCodeUnexpectedHTTPResponse    ErrorCode = "UNEXPECTED_HTTP_RESPONSE"
	ErrCodeRequestTimeout            ErrorCode = "HTTP_REQUEST_TIMEOUT"
	ErrCodeRequestFailure            ErrorCode = "HTTP_REQUEST_FAILURE"
)

// FetchResult is how every attempt reports back. The fetch layer never
// returns a plain error across its boundary: failures are structured results
// carrying the best-available fallback record.
type FetchResult struct {
	Status    FetchStatus
	Config    *cache.ProjectConfig
	ErrorCode ErrorCode
	Err       error
}

func (r FetchResult) failed(code ErrorCode, config *cache.ProjectConfig, err error) FetchResult {
	return FetchResult{Status: StatusFailure, Config: config, ErrorCode: code, Err: err}
}

// Options configures a ConfigFetcher.
type Options struct {
	SDKKey         string
	BaseURL        string // empty means DefaultBaseURL
	RequestTimeout time.Duration
	UserAgent      string
	Transport      http.RoundTripper
}

// ConfigFetcher issues conditional GET requests for one SDK key. The base
// URL may change over the fetcher's lifetime when the server declares a
// redirect, so it is guarded by a mutex.
type ConfigFetcher struct {
	client      *http.Client
	log         logger.Logger
	sdkKey      string
	userAgent   string
	timeout     time.Duration
	urlIsCustom bool

	mu      sync.Mutex
	baseURL string
}

func New(opts Options, log logger.Logger) *ConfigFetcher {
	baseURL := opts.BaseURL
	custom := baseURL != ""
	if !custom {
		baseURL = DefaultBaseURL
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &ConfigFetcher{
		client:      &http.Client{Transport: transport},
		log:         log,
		sdkKey:      opts.SDKKey,
		userAgent:   opts.UserAgent,
		timeout:     timeout,
		urlIsCustom: custom,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

// BaseURL returns the currently effective base URL, which may have been
// updated by a server-declared redirect.
func (f *ConfigFetcher) BaseURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseURL
}

func (f *ConfigFetcher) setBaseURL(url string) {
	f.mu.Lock()
	f.baseURL = strings.TrimSuffix(url, "/")
	f.mu.Unlock()
}

func (f *ConfigFetcher) configURL() string {
	return fmt.Sprintf("%s/v1/configs/%s/flags.json", f.BaseURL(), f.sdkKey)
}

// Fetch performs one logical fetch, following base-URL redirects declared in
// the response preferences up to maxRedirectFollows times. current is the
// last-known cache record; its ETag drives the conditional request and it is
// the fallback payload of every failure result.
func (f *ConfigFetcher) Fetch(ctx context.Context, current *cache.ProjectConfig) FetchResult {
	for follow := 0; ; follow++ {
		result := f.fetchOnce(ctx, current)
		if result.Status != StatusFetched || result.Config.Document == nil {
			return result
		}

		prefs := result.Config.Document.Preferences
		if prefs == nil || prefs.BaseURL == "" || prefs.BaseURL == f.BaseURL() {
			return result
		}

		// A custom base URL wins over server-declared redirects unless the
		// server forces the move.
		if f.urlIsCustom && prefs.RedirectMode != model.RedirectForce {
			return result
		}

		f.setBaseURL(prefs.BaseURL)
		switch prefs.RedirectMode {
		case model.RedirectNo:
			return result
		case model.RedirectShould:
			f.log.Warnf("your config data location is overridden by the server; " +
				"to stay on your chosen data location, set the base URL explicitly")
		}

		if follow >= maxRedirectFollows {
			f.log.Errorf("redirect loop detected while fetching the config; please contact support")
			return result
		}
	}
}

func (f *ConfigFetcher) fetchOnce(ctx context.Context, current *cache.ProjectConfig) FetchResult {
	var result FetchResult

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.configURL(), nil)
	if err != nil {
		return result.failed(ErrCodeRequestFailure, current,
			fmt.Errorf("building config request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if current.ETag != "" {
		req.Header.Set("If-None-Match", current.ETag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return result.failed(ErrCodeRequestTimeout, current,
				fmt.Errorf("request timed out after %s while trying to fetch the config: %w", f.timeout, err))
		}
		return result.failed(ErrCodeRequestFailure, current,
			fmt.Errorf("unexpected error occurred while trying to fetch the config: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return result.failed(ErrCodeRequestFailure, current,
				fmt.Errorf("reading config response body: %w", err))
		}
		doc, err := model.ParseConfigDocument(body)
		if err != nil {
			f.log.Errorf("fetching config was successful but the HTTP response content was invalid: %v", err)
			return result.failed(ErrCodeInvalidResponseContent, current,
				fmt.Errorf("the config fetched from %s is invalid: %w", f.BaseURL(), err))
		}
		f.log.Debugf("config fetched")
		return FetchResult{
			Status: StatusFetched,
			Config: &cache.ProjectConfig{
				FetchTime:  time.Now(),
				ETag:       resp.Header.Get("ETag"),
				ConfigJSON: string(body),
				Document:   doc,
			},
		}

	case resp.StatusCode == http.StatusNotModified:
		if current.IsEmpty() {
			return result.failed(ErrCodeNotModifiedWithEmptyCache, current,
				errors.New("the server responded 304 Not Modified even though the local cache is empty"))
		}
		return FetchResult{Status: StatusNotModified, Config: current.WithFetchTime(time.Now())}

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return result.failed(ErrCodeInvalidSDKKey, current.WithFetchTime(time.Now()),
			fmt.Errorf("your SDK key seems to be invalid; the server responded %s", resp.Status))

	default:
		return result.failed(ErrCodeUnexpectedHTTPResponse, current,
			fmt.Errorf("unexpected HTTP response received while trying to fetch the config: %s", resp.Status))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
