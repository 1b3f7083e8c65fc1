package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Second)
	c.Set("key1", "value1")
	v, ok := c.Get("key1")
	if !ok || v != "value1" {
		t.Fatalf("got %v, %v; want value1, true", v, ok)
	}
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(time.Second)
	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	c := NewCache(time.Hour)
	c.SetWithTTL("quick", "val", time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("quick"); ok {
		t.Fatal("expected cache miss after custom TTL expiry")
	}
}

func TestCacheInvalidateFlush(t *testing.T) {
	c := NewCache(time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected cache miss after invalidation")
	}
	c.Flush()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after flush, got %d", c.Len())
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first token should be immediate: %v", err)
	}
	cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("unlimited limiter returned %v", err)
		}
	}
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second)
	body, err := Get(context.Background(), client, srv.URL+"/ok", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}

	_, err = Get(context.Background(), client, srv.URL+"/missing", nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected *HTTPError 404, got %v", err)
	}
}
