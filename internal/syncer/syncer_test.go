package syncer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cache"
	"github.com/TimurManjosov/goflagclient/internal/fetcher"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
	"github.com/TimurManjosov/goflagclient/internal/testutil"
)

const minimalConfig = `{"f":{"enabled":{"t":0,"v":{"b":true},"i":"v1"}}}`

func newService(t *testing.T, url string, opts Options) *Service {
	t.Helper()
	f := fetcher.New(fetcher.Options{SDKKey: "test-key", BaseURL: url}, logger.Nop())
	c := cache.NewConfigCache(nil, "test-key", logger.Nop())
	s := New(f, c, opts, logger.Nop())
	t.Cleanup(s.Dispose)
	return s
}

func TestRefreshStoresConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"e1"`)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}})
	result, record := s.Refresh(context.Background())

	if !result.Successful {
		t.Fatalf("refresh failed: %v", result.Err)
	}
	if record.IsEmpty() {
		t.Fatalf("record empty after successful refresh")
	}
	if got := s.GetConfig(context.Background()); got.ETag != `"e1"` {
		t.Errorf("GetConfig etag = %q", got.ETag)
	}
	if s.CacheState() != CachedOnly {
		t.Errorf("manual-mode cache state = %v, want %v", s.CacheState(), CachedOnly)
	}
}

func TestConcurrentRefreshesShareOneFetch(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]RefreshResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Refresh(context.Background())
		}(i)
	}

	// Let every caller reach the dedup gate before the response is served.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
	for i, r := range results {
		if !r.Successful {
			t.Errorf("caller %d failed: %v", i, r.Err)
		}
	}
}

func TestFailedFetchKeepsPopulatedCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}})
	if result, _ := s.Refresh(context.Background()); !result.Successful {
		t.Fatalf("initial refresh failed: %v", result.Err)
	}

	fail.Store(true)
	result, record := s.Refresh(context.Background())
	if result.Successful {
		t.Fatalf("refresh should have failed")
	}
	if result.ErrorCode != fetcher.ErrCodeUnexpectedHTTPResponse {
		t.Errorf("code = %s", result.ErrorCode)
	}
	if record.IsEmpty() || record.ConfigJSON != minimalConfig {
		t.Errorf("populated cache clobbered by failed fetch")
	}
}

func TestConfigChangedHook(t *testing.T) {
	var body atomic.Value
	body.Store(minimalConfig)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body.Load().(string))
	}))
	defer srv.Close()

	var changes atomic.Int32
	s := newService(t, srv.URL, Options{
		Policy: ManualPolicy{},
		Hooks: Hooks{
			OnConfigChanged: func(_ *model.ConfigDocument) { changes.Add(1) },
		},
	})

	s.Refresh(context.Background())
	if got := changes.Load(); got != 1 {
		t.Fatalf("changes after first fetch = %d, want 1", got)
	}

	// Identical content does not count as a change.
	s.Refresh(context.Background())
	if got := changes.Load(); got != 1 {
		t.Fatalf("changes after identical fetch = %d, want 1", got)
	}

	body.Store(`{"f":{"enabled":{"t":0,"v":{"b":false},"i":"v2"}}}`)
	s.Refresh(context.Background())
	if got := changes.Load(); got != 2 {
		t.Fatalf("changes after new content = %d, want 2", got)
	}
}

func TestOfflineRefreshFailsWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}, Offline: true})
	result, record := s.Refresh(context.Background())

	if result.Successful {
		t.Fatalf("offline refresh should fail")
	}
	if result.ErrorCode != ErrCodeOfflineClient {
		t.Errorf("code = %s, want %s", result.ErrorCode, ErrCodeOfflineClient)
	}
	if !record.IsEmpty() {
		t.Errorf("record should be the empty sentinel")
	}
	if hits.Load() != 0 {
		t.Errorf("offline refresh touched the network %d times", hits.Load())
	}

	s.SetOnline()
	if result, _ := s.Refresh(context.Background()); !result.Successful {
		t.Errorf("refresh after SetOnline failed: %v", result.Err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times after going online, want 1", hits.Load())
	}
}

func TestLazyLoadFetchesOnExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: LazyLoad(80 * time.Millisecond)})

	record := s.GetConfig(context.Background())
	if record.IsEmpty() {
		t.Fatalf("first read should have fetched")
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}
	if s.CacheState() != UpToDate {
		t.Errorf("cache state = %v, want %v", s.CacheState(), UpToDate)
	}

	// Within the TTL the cached record is served without a fetch.
	s.GetConfig(context.Background())
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want still 1", hits.Load())
	}

	time.Sleep(120 * time.Millisecond)
	if s.CacheState() != CachedOnly {
		t.Errorf("expired cache state = %v, want %v", s.CacheState(), CachedOnly)
	}
	s.GetConfig(context.Background())
	if hits.Load() != 2 {
		t.Errorf("server hit %d times after expiry, want 2", hits.Load())
	}
}

func TestLazyLoadOfflineServesStale(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: LazyLoad(50 * time.Millisecond)})
	s.GetConfig(context.Background())
	s.SetOffline()

	time.Sleep(80 * time.Millisecond)
	record := s.GetConfig(context.Background())
	if record.IsEmpty() {
		t.Fatalf("stale record should still be served offline")
	}
	if hits.Load() != 1 {
		t.Errorf("offline expired read touched the network, hits = %d", hits.Load())
	}
}

func TestManualModeNeverFetchesOnRead(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}})

	record := s.GetConfig(context.Background())
	if !record.IsEmpty() {
		t.Errorf("manual read before refresh should be empty")
	}
	if s.CacheState() != NoFlagData {
		t.Errorf("cache state = %v, want %v", s.CacheState(), NoFlagData)
	}
	if hits.Load() != 0 {
		t.Errorf("manual read fetched, hits = %d", hits.Load())
	}
}

func TestAutoPollRefreshesOnInterval(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: AutoPoll(60*time.Millisecond, time.Second)})

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("service never became ready")
	}
	if s.GetConfig(context.Background()).IsEmpty() {
		t.Fatalf("no config after readiness")
	}

	time.Sleep(200 * time.Millisecond)
	if got := hits.Load(); got < 2 {
		t.Errorf("server hit %d times, want at least 2", got)
	}
}

func TestAutoPollReadyAfterMaxInitWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: AutoPoll(time.Minute, 50*time.Millisecond)})

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("readiness not reported after max init wait")
	}
}

func TestDisposedService(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}})
	s.Refresh(context.Background())
	s.Dispose()

	result, record := s.Refresh(context.Background())
	if result.Successful {
		t.Fatalf("refresh after dispose should fail")
	}
	if result.ErrorCode != ErrCodeDisposedClient {
		t.Errorf("code = %s, want %s", result.ErrorCode, ErrCodeDisposedClient)
	}
	if record.IsEmpty() {
		t.Errorf("last known config should still be returned")
	}
	if hits.Load() != 1 {
		t.Errorf("disposed refresh touched the network, hits = %d", hits.Load())
	}

	s.Dispose() // idempotent
}

func TestExternalCacheSharedAcrossServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, minimalConfig)
	}))
	defer srv.Close()

	shared := cache.NewMemoryCache()
	log := logger.Nop()

	f1 := fetcher.New(fetcher.Options{SDKKey: "shared-key", BaseURL: srv.URL}, log)
	s1 := New(f1, cache.NewConfigCache(shared, "shared-key", log), Options{Policy: ManualPolicy{}}, log)
	defer s1.Dispose()
	if result, _ := s1.Refresh(context.Background()); !result.Successful {
		t.Fatalf("refresh failed: %v", result.Err)
	}

	// A second service over the same external cache observes the record
	// without any fetch of its own.
	f2 := fetcher.New(fetcher.Options{SDKKey: "shared-key", BaseURL: srv.URL}, log)
	s2 := New(f2, cache.NewConfigCache(shared, "shared-key", log), Options{Policy: ManualPolicy{}, Offline: true}, log)
	defer s2.Dispose()

	record := s2.GetConfig(context.Background())
	if record.IsEmpty() {
		t.Fatalf("second service did not observe the shared cache record")
	}
	if record.ConfigJSON != minimalConfig {
		t.Errorf("unexpected shared record content")
	}
}

func TestRefreshUsesConditionalRequests(t *testing.T) {
	srv := testutil.NewConfigServer(t, minimalConfig)

	s := newService(t, srv.URL, Options{Policy: ManualPolicy{}})
	if result, _ := s.Refresh(context.Background()); !result.Successful {
		t.Fatalf("first refresh failed: %v", result.Err)
	}
	first := s.GetConfig(context.Background())

	// Unchanged content comes back as a 304 and only bumps the timestamp.
	result, record := s.Refresh(context.Background())
	if !result.Successful {
		t.Fatalf("second refresh failed: %v", result.Err)
	}
	if srv.NotModifiedCount() != 1 {
		t.Errorf("not-modified count = %d, want 1", srv.NotModifiedCount())
	}
	if record.ETag != first.ETag || record.ConfigJSON != first.ConfigJSON {
		t.Errorf("content changed on 304")
	}
	if !record.FetchTime.After(first.FetchTime) {
		t.Errorf("timestamp not refreshed on 304")
	}

	// New content invalidates the ETag and is fetched in full.
	srv.SetConfig(`{"f":{"enabled":{"t":0,"v":{"b":false},"i":"v2"}}}`)
	if result, record = s.Refresh(context.Background()); !result.Successful {
		t.Fatalf("third refresh failed: %v", result.Err)
	}
	if record.ETag == first.ETag {
		t.Errorf("etag unchanged after content change")
	}
}
