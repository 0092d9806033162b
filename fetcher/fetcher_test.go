package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/scipunch/podfeed/config"
	"github.com/scipunch/podfeed/fetcher/types"
)

const feedXML = `<rss><channel><item><title>Episode</title></item></channel></rss>`

func fastFetcher(opts Options) *HTTPFetcher {
	f := NewHTTPFetcher(opts)
	f.backoff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return f
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	doc, err := fastFetcher(Options{}).Fetch(context.Background(), server.URL, types.Validators{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(doc.Body) != feedXML {
		t.Errorf("unexpected body %q", doc.Body)
	}
	if doc.ETag != `"v1"` {
		t.Errorf("ETag = %q", doc.ETag)
	}
	if doc.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("LastModified = %q", doc.LastModified)
	}
	if doc.NotModified {
		t.Error("expected NotModified=false")
	}
	if doc.FetchedAt.IsZero() {
		t.Error("expected FetchedAt to be set")
	}
}

func TestHTTPFetcher_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	doc, err := fastFetcher(Options{}).Fetch(context.Background(), server.URL, types.Validators{ETag: `"v1"`})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !doc.NotModified {
		t.Error("expected NotModified=true")
	}
	if len(doc.Body) != 0 {
		t.Errorf("expected empty body, got %q", doc.Body)
	}
	if doc.ETag != `"v1"` {
		t.Errorf("expected previous ETag to be kept, got %q", doc.ETag)
	}
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	doc, err := fastFetcher(Options{MaxRetries: 3}).Fetch(context.Background(), server.URL, types.Validators{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(doc.Body) != feedXML {
		t.Errorf("unexpected body %q", doc.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPFetcher_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := fastFetcher(Options{MaxRetries: 2}).Fetch(context.Background(), server.URL, types.Validators{})
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Errorf("expected StatusError 502, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls (initial + 2 retries), got %d", calls.Load())
	}
}

func TestHTTPFetcher_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := fastFetcher(Options{MaxRetries: 5}).Fetch(context.Background(), server.URL, types.Validators{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

// countingBackOff records how many waits the retry loop asked for
type countingBackOff struct {
	waits int
}

func (b *countingBackOff) NextBackOff() time.Duration {
	b.waits++
	return time.Millisecond
}

func (b *countingBackOff) Reset() {}

func TestHTTPFetcher_InvalidURLNotRetried(t *testing.T) {
	tests := []string{
		"ftp://example.com/feed.xml",
		"http://[::1",
		"/podcasts/feed.xml",
		"https:///feed.xml",
	}

	for _, url := range tests {
		t.Run(url, func(t *testing.T) {
			b := &countingBackOff{}
			f := NewHTTPFetcher(Options{MaxRetries: 3})
			f.backoff = func() backoff.BackOff { return b }

			_, err := f.Fetch(context.Background(), url, types.Validators{})
			if !errors.Is(err, ErrInvalidURL) {
				t.Fatalf("expected ErrInvalidURL, got %v", err)
			}
			if b.waits != 0 {
				t.Errorf("expected no backoff waits, got %d", b.waits)
			}
		})
	}
}

func TestHTTPFetcher_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	_, err := fastFetcher(Options{MaxBodyBytes: 10}).Fetch(context.Background(), server.URL, types.Validators{})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestFileFetcher_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	if err := os.WriteFile(path, []byte(feedXML), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFileFetcher()
	for _, location := range []string{path, "file://" + path} {
		doc, err := f.Fetch(context.Background(), location, types.Validators{})
		if err != nil {
			t.Fatalf("Fetch(%s) failed: %v", location, err)
		}
		if string(doc.Body) != feedXML {
			t.Errorf("unexpected body %q", doc.Body)
		}

		again, err := f.Fetch(context.Background(), location, doc.Validators())
		if err != nil {
			t.Fatalf("conditional Fetch(%s) failed: %v", location, err)
		}
		if !again.NotModified {
			t.Errorf("expected unchanged file to be NotModified")
		}
	}
}

func TestFileFetcher_Missing(t *testing.T) {
	_, err := NewFileFetcher().Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.xml"), types.Validators{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestGetFetchers(t *testing.T) {
	fetchers, err := GetFetchers([]config.ResourceType{config.RSS, config.File, config.RSS}, Options{})
	if err != nil {
		t.Fatalf("GetFetchers failed: %v", err)
	}
	if len(fetchers) != 2 {
		t.Errorf("expected 2 fetchers, got %d", len(fetchers))
	}
	if _, ok := fetchers[config.RSS].(*HTTPFetcher); !ok {
		t.Errorf("expected HTTPFetcher for rss, got %T", fetchers[config.RSS])
	}

	if _, err := GetFetchers([]config.ResourceType{"telegram_channel"}, Options{}); err == nil {
		t.Error("expected error for unknown resource type")
	}
}
