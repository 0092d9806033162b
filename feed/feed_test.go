package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/podfeed/cache"
	"github.com/scipunch/podfeed/config"
	"github.com/scipunch/podfeed/feed"
	"github.com/scipunch/podfeed/fetcher"
	"github.com/scipunch/podfeed/fetcher/types"
	"github.com/scipunch/podfeed/parser"
)

const showXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Show</title>
    <description>A show about examples</description>
    <item>
      <title>Episode 1</title>
      <description>Desc</description>
      <enclosure url="http://x/a.mp3" type="audio/mpeg" length="1"/>
    </item>
    <item>
      <title>Episode 2</title>
    </item>
  </channel>
</rss>`

type server struct {
	*httptest.Server
	hits  atomic.Int32
	fresh atomic.Int32 // 200 responses
}

func newServer(t *testing.T, body string) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		s.fresh.Add(1)
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.NewCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func fetchers() map[config.ResourceType]types.DocumentFetcher {
	return map[config.ResourceType]types.DocumentFetcher{
		config.RSS: fetcher.NewHTTPFetcher(fetcher.Options{MaxRetries: 0}),
	}
}

func TestService_Load(t *testing.T) {
	srv := newServer(t, showXML)
	svc := feed.NewService(fetchers(), newCache(t))

	f, err := svc.Load(context.Background(), srv.URL, config.RSS)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, f.URL)
	assert.False(t, f.FromCache)
	assert.Equal(t, "Example Show", f.Channel.Title)
	assert.Equal(t, "A show about examples", f.Channel.Description)
	require.Len(t, f.Episodes, 2)

	audio := "http://x/a.mp3"
	assert.Equal(t, parser.Episode{Title: "Episode 1", Description: "Desc", AudioURL: &audio}, f.Episodes[0])
	assert.Equal(t, parser.Episode{Title: "Episode 2"}, f.Episodes[1])
}

func TestService_NotModifiedUsesCache(t *testing.T) {
	srv := newServer(t, showXML)
	svc := feed.NewService(fetchers(), newCache(t))

	first, err := svc.Load(context.Background(), srv.URL, config.RSS)
	require.NoError(t, err)

	second, err := svc.Load(context.Background(), srv.URL, config.RSS)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, first.Episodes, second.Episodes)
	assert.Equal(t, "Example Show", second.Channel.Title)
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.Equal(t, int32(1), srv.fresh.Load())
}

func TestService_Offline(t *testing.T) {
	srv := newServer(t, showXML)
	c := newCache(t)

	_, err := feed.NewService(fetchers(), c, feed.WithOffline(true)).Load(context.Background(), srv.URL, config.RSS)
	assert.ErrorIs(t, err, feed.ErrNotCached)

	_, err = feed.NewService(fetchers(), c).Load(context.Background(), srv.URL, config.RSS)
	require.NoError(t, err)

	offline := feed.NewService(nil, c, feed.WithOffline(true))
	f, err := offline.Load(context.Background(), srv.URL, config.RSS)
	require.NoError(t, err)
	assert.True(t, f.FromCache)
	assert.Len(t, f.Episodes, 2)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestService_OfflineWithoutCache(t *testing.T) {
	_, err := feed.NewService(nil, nil, feed.WithOffline(true)).Load(context.Background(), "https://example.com", config.RSS)
	assert.ErrorIs(t, err, feed.ErrNotCached)
}

func TestService_MalformedFeed(t *testing.T) {
	srv := newServer(t, `<rss><channel><item><title>broken</channel></rss>`)
	c := newCache(t)
	svc := feed.NewService(fetchers(), c)

	_, err := svc.Load(context.Background(), srv.URL, config.RSS)
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrUpstreamFailure)

	// Nothing is stored for a failed extraction
	_, found, _ := c.GetDocument(srv.URL)
	assert.False(t, found)
}

func TestService_UnknownResourceType(t *testing.T) {
	svc := feed.NewService(fetchers(), nil)

	_, err := svc.Load(context.Background(), "https://example.com", config.File)
	assert.Error(t, err)
}

func TestService_NoCache(t *testing.T) {
	srv := newServer(t, showXML)
	svc := feed.NewService(fetchers(), nil)

	for range 2 {
		f, err := svc.Load(context.Background(), srv.URL, config.RSS)
		require.NoError(t, err)
		assert.Len(t, f.Episodes, 2)
		assert.False(t, f.FromCache)
	}
	assert.Equal(t, int32(2), srv.fresh.Load())
}

func TestService_UnreadableCacheFallsBackToFetch(t *testing.T) {
	srv := newServer(t, showXML)
	c, err := cache.NewCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	svc := feed.NewService(fetchers(), c)
	f, err := svc.Load(context.Background(), srv.URL, config.RSS)
	require.NoError(t, err)
	assert.Len(t, f.Episodes, 2)
	assert.False(t, f.FromCache)
	assert.EqualValues(t, 1, srv.fresh.Load())
}
