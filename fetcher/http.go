package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/scipunch/podfeed/fetcher/types"
)

var (
	// ErrBodyTooLarge is returned when a document exceeds Options.MaxBodyBytes
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrInvalidURL is returned for URLs no HTTP request can be made to
	ErrInvalidURL = errors.New("invalid feed URL")
)

// StatusError reports an unexpected HTTP status
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// retryable reports whether a later attempt may succeed
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTPFetcher downloads feed documents over HTTP, retrying transient
// failures with exponential backoff
type HTTPFetcher struct {
	client  *http.Client
	opts    Options
	backoff func() backoff.BackOff
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Fetch retrieves the document at url. Non-empty validators turn the
// request into a conditional GET; a 304 answer yields a Document with
// NotModified set.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, v types.Validators) (types.Document, error) {
	var doc types.Document
	if err := checkURL(url); err != nil {
		return doc, fmt.Errorf("failed to fetch '%s' with %w", url, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.backoff(), uint64(f.opts.MaxRetries)), ctx)
	operation := func() error {
		var err error
		doc, err = f.fetchOnce(ctx, url, v)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrBodyTooLarge) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("feed fetch failed, retrying", "url", url, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return types.Document{}, fmt.Errorf("failed to fetch '%s' with %w", url, err)
	}
	return doc, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string, v types.Validators) (types.Document, error) {
	doc := types.Document{URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doc, backoff.Permanent(fmt.Errorf("%w: %w", ErrInvalidURL, err))
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	}
	if v.LastModified != "" {
		req.Header.Set("If-Modified-Since", v.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return doc, err
	}
	defer resp.Body.Close()

	doc.FetchedAt = time.Now()
	doc.ETag = resp.Header.Get("ETag")
	doc.LastModified = resp.Header.Get("Last-Modified")

	switch {
	case resp.StatusCode == http.StatusNotModified:
		doc.NotModified = true
		if doc.ETag == "" {
			doc.ETag = v.ETag
		}
		if doc.LastModified == "" {
			doc.LastModified = v.LastModified
		}
		return doc, nil
	case resp.StatusCode != http.StatusOK:
		return doc, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return doc, err
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return doc, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.opts.MaxBodyBytes)
	}
	doc.Body = body

	slog.Debug("feed document fetched", "url", url, "bytes", len(body), "etag", doc.ETag)
	return doc, nil
}

// checkURL rejects URLs that fail the same way on every attempt
func checkURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme '%s'", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
