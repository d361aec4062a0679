package scopedoc

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scopeServer is a controllable scope-document endpoint.
type scopeServer struct {
	mu      sync.Mutex
	body    string
	status  int
	fetches int
}

func (s *scopeServer) set(body string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body, s.status = body, status
}

func (s *scopeServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *scopeServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	w.WriteHeader(s.status)
	w.Write([]byte(s.body))
}

func TestCache_FreshValueServedWithoutRefetch(t *testing.T) {
	upstream := &scopeServer{body: "the scope", status: http.StatusOK}
	ts := httptest.NewServer(http.HandlerFunc(upstream.handler))
	defer ts.Close()

	c := NewCache(ts.URL, nil, testLogger())

	assert.Equal(t, "the scope", c.Get(context.Background()))
	assert.Equal(t, "the scope", c.Get(context.Background()))
	assert.Equal(t, 1, upstream.count(), "second call within the freshness window must not fetch")
}

func TestCache_ExpiredValueIsRefetched(t *testing.T) {
	upstream := &scopeServer{body: "v1", status: http.StatusOK}
	ts := httptest.NewServer(http.HandlerFunc(upstream.handler))
	defer ts.Close()

	now := time.Now()
	c := NewCache(ts.URL, nil, testLogger())
	c.now = func() time.Time { return now }

	assert.Equal(t, "v1", c.Get(context.Background()))

	upstream.set("v2", http.StatusOK)
	now = now.Add(defaultFreshness + time.Minute)
	assert.Equal(t, "v2", c.Get(context.Background()))
	assert.Equal(t, 2, upstream.count())
}

func TestCache_FailedRefreshKeepsPreviousValue(t *testing.T) {
	upstream := &scopeServer{body: "good value", status: http.StatusOK}
	ts := httptest.NewServer(http.HandlerFunc(upstream.handler))
	defer ts.Close()

	now := time.Now()
	c := NewCache(ts.URL, nil, testLogger())
	c.now = func() time.Time { return now }

	assert.Equal(t, "good value", c.Get(context.Background()))

	// Upstream breaks after expiry: the stale value must survive.
	upstream.set("oops", http.StatusInternalServerError)
	now = now.Add(defaultFreshness + time.Minute)
	assert.Equal(t, "good value", c.Get(context.Background()))

	// The failed refresh left the timestamp untouched, so recovery is
	// picked up on the very next call.
	upstream.set("recovered", http.StatusOK)
	assert.Equal(t, "recovered", c.Get(context.Background()))
}

func TestCache_NeverFetchedFailureYieldsEmpty(t *testing.T) {
	upstream := &scopeServer{body: "", status: http.StatusServiceUnavailable}
	ts := httptest.NewServer(http.HandlerFunc(upstream.handler))
	defer ts.Close()

	c := NewCache(ts.URL, nil, testLogger())
	assert.Equal(t, "", c.Get(context.Background()))
}

func TestCache_TransportErrorYieldsPrevious(t *testing.T) {
	c := NewCache("http://127.0.0.1:1/scope.txt", nil, testLogger())
	assert.Equal(t, "", c.Get(context.Background()))
}
