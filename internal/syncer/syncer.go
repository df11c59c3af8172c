// Package syncer keeps the local config record in sync with the remote
// endpoint under one of three polling policies, deduplicating concurrent
// refreshes and merging fetch outcomes into the shared cache.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cache"
	"github.com/TimurManjosov/goflagclient/internal/fetcher"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
)

// Error codes raised by the sync layer itself, alongside the fetch layer's.
const (
	ErrCodeOfflineClient  fetcher.ErrorCode = "OFFLINE_CLIENT"
	ErrCodeDisposedClient fetcher.ErrorCode = "DISPOSED_CLIENT"
)

// RefreshResult reports the outcome of one refresh attempt. Failures are
// always structured; the refresh path never returns a bare error.
type RefreshResult struct {
	Successful bool
	ErrorCode  fetcher.ErrorCode
	Err        error
}

func refreshFailure(code fetcher.ErrorCode, err error) RefreshResult {
	return RefreshResult{ErrorCode: code, Err: err}
}

// Hooks are optional callbacks fired by the sync layer. They are invoked
// synchronously from the goroutine that completed the triggering operation,
// never under internal locks.
type Hooks struct {
	// OnConfigChanged fires after a successful fetch whose content differs
	// from the previously held record.
	OnConfigChanged func(doc *model.ConfigDocument)
	// OnError fires on every failed refresh attempt.
	OnError func(err error)
}

// Options configures a sync Service.
type Options struct {
	Policy  Policy
	Hooks   Hooks
	Offline bool
}

// inflight is the shared state of one in-progress fetch. Concurrent refresh
// callers wait on done and read the same outcome instead of issuing parallel
// requests.
type inflight struct {
	done   chan struct{}
	result RefreshResult
	config *cache.ProjectConfig
}

// Service is the config synchronization state machine. The mutex serializes
// cache access and state transitions; the actual HTTP fetch runs outside the
// lock, guarded by the single-flight pending marker.
type Service struct {
	log     logger.Logger
	fetcher *fetcher.ConfigFetcher
	cache   *cache.ConfigCache
	policy  Policy
	hooks   Hooks

	mu       sync.Mutex
	pending  *inflight
	offline  bool
	disposed bool

	ready     chan struct{}
	readyOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
	loopDone  chan struct{}
}

// New creates a sync service and starts the background poller when the
// policy is auto-poll. The service is usable immediately; Ready() signals
// when the policy considers the initial state settled.
func New(f *fetcher.ConfigFetcher, c *cache.ConfigCache, opts Options, log logger.Logger) *Service {
	policy := opts.Policy
	if policy == nil {
		policy = AutoPoll(0, 0)
	}
	s := &Service{
		log:      log,
		fetcher:  f,
		cache:    c,
		policy:   policy,
		hooks:    opts.Hooks,
		offline:  opts.Offline,
		ready:    make(chan struct{}),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	if auto, ok := policy.(AutoPollPolicy); ok {
		go s.runAutoPoll(auto)
	} else {
		close(s.loopDone)
		// Manual and lazy modes are ready as soon as the initial cache
		// sync-up resolves.
		s.cache.Get(context.Background())
		s.signalReady()
	}
	return s
}

// Ready is closed once the initial state is settled per the polling policy.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// GetConfig returns the best config record available under the polling
// policy: it syncs up with the external cache and, when the policy demands a
// fetch first (lazy mode with an expired record, online only), refreshes
// before serving.
func (s *Service) GetConfig(ctx context.Context) *cache.ProjectConfig {
	s.mu.Lock()
	if s.disposed {
		record := s.cache.Latest()
		s.mu.Unlock()
		s.log.Warnf("the client object is already disposed, returning the last known config")
		return record
	}
	_, record := s.cache.Get(ctx)
	offline := s.offline
	s.mu.Unlock()

	if !offline && s.policy.ShouldFetch(record, time.Now()) {
		_, record = s.Refresh(ctx)
	}
	return record
}

// Refresh unconditionally attempts to reach the freshest config version.
// Concurrent calls share a single fetch attempt. The returned record is the
// best available one regardless of outcome, never nil.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, *cache.ProjectConfig) {
	s.mu.Lock()
	if s.disposed {
		record := s.cache.Latest()
		s.mu.Unlock()
		s.log.Warnf("the client object is already disposed, skipping the refresh")
		return refreshFailure(ErrCodeDisposedClient, errors.New("the client has been disposed")), record
	}
	if s.offline {
		record := s.cache.Latest()
		s.mu.Unlock()
		err := errors.New("cannot initiate HTTP calls because the client is in offline mode")
		s.log.Warnf("%v", err)
		return refreshFailure(ErrCodeOfflineClient, err), record
	}
	if op := s.pending; op != nil {
		s.mu.Unlock()
		<-op.done
		return op.result, op.config
	}

	op := &inflight{done: make(chan struct{})}
	s.pending = op
	_, current := s.cache.Get(ctx)
	s.mu.Unlock()

	fetchResult := s.fetcher.Fetch(ctx, current)

	s.mu.Lock()
	merged, changed := s.merge(ctx, current, fetchResult)
	s.pending = nil
	s.mu.Unlock()

	op.config = merged
	if fetchResult.Status == fetcher.StatusFailure {
		op.result = refreshFailure(fetchResult.ErrorCode, fetchResult.Err)
	} else {
		op.result = RefreshResult{Successful: true}
	}
	close(op.done)

	if changed && s.hooks.OnConfigChanged != nil {
		s.hooks.OnConfigChanged(merged.Document)
	}
	if op.result.Err != nil {
		s.log.Errorf("config refresh failed: %v", op.result.Err)
		if s.hooks.OnError != nil {
			s.hooks.OnError(op.result.Err)
		}
	}
	return op.result, op.config
}

// merge decides whether the fetch outcome replaces the cached record. A
// successful fetch always wins. A failed one wins only with a strictly newer
// timestamp, and only when it carries content or the previous slot was
// already empty: error responses throttle immediate retries by bumping the
// timestamp of an empty slot, but never clobber populated cache content.
// Called with the mutex held.
func (s *Service) merge(ctx context.Context, previous *cache.ProjectConfig, result fetcher.FetchResult) (*cache.ProjectConfig, bool) {
	incoming := result.Config
	succeeded := result.Status != fetcher.StatusFailure
	newer := incoming.FetchTime.After(previous.FetchTime)

	if succeeded || (newer && (!incoming.IsEmpty() || previous.IsEmpty())) {
		s.cache.Set(ctx, incoming)
	} else {
		incoming = s.cache.Latest()
	}

	changed := result.Status == fetcher.StatusFetched && !cache.ContentEquals(previous, result.Config)
	return incoming, changed
}

// CacheState classifies the current record's freshness under the polling
// policy.
func (s *Service) CacheState() CacheState {
	s.mu.Lock()
	record := s.cache.Latest()
	s.mu.Unlock()
	return s.policy.CacheState(record, time.Now())
}

// IsOffline reports whether HTTP fetches are currently forbidden.
func (s *Service) IsOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// SetOnline re-enables HTTP fetches.
func (s *Service) SetOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		s.log.Warnf("the client object is already disposed, ignoring SetOnline")
		return
	}
	if s.offline {
		s.offline = false
		s.log.Infof("switched to ONLINE mode")
	}
}

// SetOffline forbids HTTP fetches; reads keep serving cached data.
func (s *Service) SetOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		s.log.Warnf("the client object is already disposed, ignoring SetOffline")
		return
	}
	if !s.offline {
		s.offline = true
		s.log.Infof("switched to OFFLINE mode")
	}
}

// Dispose terminally shuts the service down: the poller stops and further
// operations degrade to cache-only no-ops with a notice.
func (s *Service) Dispose() {
	s.mu.Lock()
	already := s.disposed
	s.disposed = true
	s.mu.Unlock()
	if already {
		return
	}
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.loopDone
	s.signalReady()
}

// runAutoPoll performs the initial refresh, reports readiness per the
// max-init-wait rule, then refreshes on the fixed interval until disposed.
func (s *Service) runAutoPoll(policy AutoPollPolicy) {
	defer close(s.loopDone)

	// Cached data within the poll interval settles readiness without
	// waiting for the network.
	s.mu.Lock()
	_, record := s.cache.Get(context.Background())
	s.mu.Unlock()
	if policy.CacheState(record, time.Now()) == UpToDate {
		s.signalReady()
	}

	initWait := time.AfterFunc(policy.MaxInitWait, s.signalReady)
	defer initWait.Stop()

	s.Refresh(context.Background())
	s.signalReady()

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.IsOffline() {
				continue
			}
			s.Refresh(context.Background())
		}
	}
}
