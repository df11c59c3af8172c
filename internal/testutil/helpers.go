// Package testutil provides shared test helpers: a config CDN stand-in with
// conditional-request support.
package testutil

import (
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ConfigServer mimics the config CDN for tests: it serves a mutable config
// body with an ETag and answers conditional requests with 304.
type ConfigServer struct {
	*httptest.Server

	mu          sync.Mutex
	body        string
	etag        string
	status      int
	hits        int
	notModified int
}

// NewConfigServer starts a config server initially serving body. The server
// is closed automatically when the test finishes.
func NewConfigServer(t *testing.T, body string) *ConfigServer {
	t.Helper()
	s := &ConfigServer{}
	s.setBody(body)
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *ConfigServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == s.etag {
		s.notModified++
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", s.etag)
	fmt.Fprint(w, s.body)
}

func (s *ConfigServer) setBody(body string) {
	s.body = body
	s.etag = fmt.Sprintf("%q", fmt.Sprintf("%x", sha1.Sum([]byte(body)))[:16])
}

// SetConfig replaces the served config body; the ETag changes with it.
func (s *ConfigServer) SetConfig(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setBody(body)
}

// SetStatus makes the server answer every request with the given HTTP
// status. Zero restores normal serving.
func (s *ConfigServer) SetStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Hits returns the number of requests served so far.
func (s *ConfigServer) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// NotModifiedCount returns how many requests were answered with 304.
func (s *ConfigServer) NotModifiedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notModified
}
