// Package feed loads podcast feeds end to end: fetch the document, run the
// episode extractor over its token stream and keep the cache current.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scipunch/podfeed/cache"
	"github.com/scipunch/podfeed/config"
	"github.com/scipunch/podfeed/fetcher/types"
	"github.com/scipunch/podfeed/parser"
	"github.com/scipunch/podfeed/parser/xmlstream"
)

// ErrNotCached is returned in offline mode when no document was stored
var ErrNotCached = errors.New("feed not cached")

// Feed is a loaded podcast feed
type Feed struct {
	URL       string           `json:"url"`
	Channel   parser.Channel   `json:"channel"`
	Episodes  []parser.Episode `json:"episodes"`
	FetchedAt time.Time        `json:"fetched_at"`
	FromCache bool             `json:"from_cache"`
}

// Service wires fetchers, the extractor and the cache together
type Service struct {
	fetchers  map[config.ResourceType]types.DocumentFetcher
	cache     *cache.Cache
	strictXML bool
	offline   bool
}

// Option configures a Service
type Option func(*Service)

// WithStrictXML controls whether malformed markup fails the extraction
func WithStrictXML(strict bool) Option {
	return func(s *Service) {
		s.strictXML = strict
	}
}

// WithOffline serves every load from the cache without touching the network
func WithOffline(offline bool) Option {
	return func(s *Service) {
		s.offline = offline
	}
}

// NewService creates a Service. c may be nil, in which case nothing is
// cached and offline mode always fails.
func NewService(fetchers map[config.ResourceType]types.DocumentFetcher, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		fetchers:  fetchers,
		cache:     c,
		strictXML: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the episodes of the feed at url
func (s *Service) Load(ctx context.Context, url string, rt config.ResourceType) (Feed, error) {
	if s.offline {
		return s.loadCached(ctx, url)
	}

	f, ok := s.fetchers[rt]
	if !ok {
		return Feed{}, fmt.Errorf("no fetcher for resource type '%s'", rt)
	}

	var (
		cached    types.Document
		hasCached bool
	)
	if s.cache != nil {
		var err error
		cached, hasCached, err = s.cache.GetDocument(url)
		if err != nil {
			slog.Warn("failed to read cached feed document", "url", url, "error", err)
		}
	}

	var validators types.Validators
	if hasCached {
		validators = cached.Validators()
	}

	doc, err := f.Fetch(ctx, url, validators)
	if err != nil {
		return Feed{}, err
	}

	if doc.NotModified && hasCached {
		slog.Debug("feed not modified", "url", url)
		feed, err := s.fromDocument(ctx, cached)
		if err != nil {
			return Feed{}, err
		}
		feed.FetchedAt = doc.FetchedAt
		return feed, nil
	}
	if doc.NotModified {
		// Validators came from somewhere else, refetch unconditionally
		doc, err = f.Fetch(ctx, url, types.Validators{})
		if err != nil {
			return Feed{}, err
		}
	}

	episodes, err := s.extract(ctx, doc.Body)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to extract episodes from '%s' with %w", url, err)
	}

	if s.cache != nil {
		if err := s.cache.SetDocument(doc); err != nil {
			slog.Warn("failed to cache feed document", "url", url, "error", err)
		}
		if err := s.cache.SetEpisodes(url, episodes); err != nil {
			slog.Warn("failed to cache episodes", "url", url, "error", err)
		}
	}

	slog.Info("feed extracted", "url", url, "episodes", len(episodes))
	return Feed{
		URL:       url,
		Channel:   channel(url, doc.Body),
		Episodes:  episodes,
		FetchedAt: doc.FetchedAt,
	}, nil
}

func (s *Service) loadCached(ctx context.Context, url string) (Feed, error) {
	if s.cache == nil {
		return Feed{}, fmt.Errorf("'%s': %w", url, ErrNotCached)
	}
	doc, found, err := s.cache.GetDocument(url)
	if err != nil {
		return Feed{}, err
	}
	if !found {
		return Feed{}, fmt.Errorf("'%s': %w", url, ErrNotCached)
	}
	return s.fromDocument(ctx, doc)
}

// fromDocument builds a feed from a stored document, preferring the
// stored episodes over a new extraction
func (s *Service) fromDocument(ctx context.Context, doc types.Document) (Feed, error) {
	feed := Feed{
		URL:       doc.URL,
		Channel:   channel(doc.URL, doc.Body),
		FetchedAt: doc.FetchedAt,
		FromCache: true,
	}

	if episodes, found, _ := s.cache.GetEpisodes(doc.URL); found {
		feed.Episodes = episodes
		return feed, nil
	}

	episodes, err := s.extract(ctx, doc.Body)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to extract episodes from cached '%s' with %w", doc.URL, err)
	}
	if err := s.cache.SetEpisodes(doc.URL, episodes); err != nil {
		slog.Warn("failed to cache episodes", "url", doc.URL, "error", err)
	}
	feed.Episodes = episodes
	return feed, nil
}

func (s *Service) extract(ctx context.Context, body []byte) ([]parser.Episode, error) {
	src := xmlstream.New(bytes.NewReader(body), xmlstream.WithStrict(s.strictXML))
	return parser.Extract(ctx, src)
}

func channel(url string, body []byte) parser.Channel {
	ch, err := parser.ParseChannel(body)
	if err != nil {
		slog.Warn("failed to read channel metadata", "url", url, "error", err)
	}
	return ch
}
