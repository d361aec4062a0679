// Package scopedoc fetches the documentation scope description embedded in
// the system prompt, caching it with bounded staleness. The document changes
// rarely, so a stale copy is always preferable to a missing one.
package scopedoc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/m3y/askdoc/internal/metrics"
)

// defaultFreshness is how long a fetched scope document is served without
// another network call.
const defaultFreshness = time.Hour

// Cache implements the usecase.ScopeProvider interface over a plain HTTP GET
// endpoint. The single cached slot is monotone: a failed refresh never
// replaces a previously good value.
type Cache struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	freshness  time.Duration
	now        func() time.Time

	mu        sync.Mutex
	content   string
	fetchedAt time.Time // zero until the first successful fetch
}

// NewCache creates a Cache for the scope document at url.
func NewCache(url string, client *http.Client, logger *slog.Logger) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{
		url:        url,
		httpClient: client,
		logger:     logger.With("component", "scopedoc_cache"),
		freshness:  defaultFreshness,
		now:        time.Now,
	}
}

// Get returns the scope document. A cached copy younger than the freshness
// window is served without a network call. On fetch failure the previous
// value is returned unchanged, or the empty string if nothing was ever
// fetched successfully.
//
// The lock is never held across the fetch; if concurrent callers race on a
// refresh, last-writer-wins, which is fine for advisory prompt content.
func (c *Cache) Get(ctx context.Context) string {
	c.mu.Lock()
	cached, fetchedAt := c.content, c.fetchedAt
	c.mu.Unlock()

	if !fetchedAt.IsZero() && c.now().Sub(fetchedAt) < c.freshness {
		metrics.ScopeFetchesTotal.WithLabelValues("hit").Inc()
		return cached
	}

	content, err := c.fetch(ctx)
	if err != nil {
		// Keep the stale value and its timestamp; the next call will try
		// again.
		c.logger.Warn("Scope document fetch failed, serving previous value.",
			slog.String("url", c.url), slog.Any("error", err))
		metrics.ScopeFetchesTotal.WithLabelValues("failure").Inc()
		return cached
	}

	c.mu.Lock()
	c.content = content
	c.fetchedAt = c.now()
	c.mu.Unlock()

	metrics.ScopeFetchesTotal.WithLabelValues("refresh").Inc()
	c.logger.Info("Scope document refreshed.", slog.Int("bytes", len(content)))
	return content
}

func (c *Cache) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request for %s: %w", c.url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch scope document from %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch scope document from %s: status %s", c.url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read scope document body from %s: %w", c.url, err)
	}
	return string(body), nil
}
