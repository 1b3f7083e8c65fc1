// Package infra provides shared infrastructure components used across
// the application: caching, rate limiting, and HTTP utilities.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// --- In-memory TTL cache ---

// Cache is a thread-safe in-memory cache with a default TTL.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates a new cache with the given default TTL.
// Expired entries are purged every 2×TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, 2*ttl)}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.c.SetDefault(key, value)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.c.Set(key, value, ttl)
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.c.Delete(key)
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.c.Flush()
}

// Len returns the number of entries, expired ones included until purged.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}

// --- Rate limiter ---

// RateLimiter is a token bucket shared by every call to one upstream.
type RateLimiter struct {
	l *rate.Limiter
}

// NewRateLimiter allows perSecond requests per second with a burst of the same size.
// A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.l.Wait(ctx)
}

// --- HTTP helpers ---

// DefaultUserAgent is the user agent string used for upstream HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPError wraps a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// NewHTTPClient returns a client with the given overall timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Get performs a GET request and returns the full body.
// A status >= 400 yields *HTTPError.
func Get(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}
