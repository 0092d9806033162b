package cache

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scipunch/podfeed/fetcher/types"
	"github.com/scipunch/podfeed/parser"
)

//go:embed schema.sql
var schemaSQL string

// Cache stores fetched feed documents and the episodes extracted from them
type Cache struct {
	db *sql.DB
}

// CacheStats contains cache statistics
type CacheStats struct {
	DocumentEntries int
	EpisodeEntries  int
	OldestEntry     time.Time
}

// NewCache initializes cache database at the given path
func NewCache(dbPath string) (*Cache, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c, err := NewCacheFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewCacheFromDB initializes the cache schema on an already open database
func NewCacheFromDB(db *sql.DB) (*Cache, error) {
	// Concurrent feed loads share the connection, sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// GetDocument retrieves the last stored document for url
// Returns: (document, found, error)
func (c *Cache) GetDocument(url string) (types.Document, bool, error) {
	doc := types.Document{URL: url}
	var createdAt int64

	err := c.db.QueryRow(
		"SELECT etag, last_modified, body, created_at FROM document_cache WHERE url = ?",
		url,
	).Scan(&doc.ETag, &doc.LastModified, &doc.Body, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return doc, false, nil
	}
	if err != nil {
		slog.Warn("document cache read error", "error", err, "url", truncate(url, 50))
		return doc, false, nil // Treat errors as cache miss
	}
	doc.FetchedAt = time.Unix(createdAt, 0)

	c.touch("document_cache", url)
	return doc, true, nil
}

// SetDocument stores a fetched document together with its validators
func (c *Cache) SetDocument(doc types.Document) error {
	now := time.Now().Unix()
	body := doc.Body
	if body == nil {
		body = []byte{}
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO document_cache
		(url, etag, last_modified, body, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.URL, doc.ETag, doc.LastModified, body, now, now)

	if err != nil {
		slog.Warn("document cache write error", "error", err, "url", truncate(doc.URL, 50))
		return err
	}

	return nil
}

// GetEpisodes retrieves the episodes last extracted from url
func (c *Cache) GetEpisodes(url string) ([]parser.Episode, bool, error) {
	var output []byte

	err := c.db.QueryRow(
		"SELECT output_data FROM episode_cache WHERE url = ?",
		url,
	).Scan(&output)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		slog.Warn("episode cache read error", "error", err, "url", truncate(url, 50))
		return nil, false, nil
	}

	episodes, err := DeserializeEpisodes(output)
	if err != nil {
		slog.Warn("failed to deserialize cached episodes", "error", err, "url", truncate(url, 50))
		return nil, false, nil
	}

	c.touch("episode_cache", url)
	return episodes, true, nil
}

// SetEpisodes stores the episodes extracted from url
func (c *Cache) SetEpisodes(url string, episodes []parser.Episode) error {
	now := time.Now().Unix()

	output, err := SerializeEpisodes(episodes)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO episode_cache
		(url, output_data, created_at, accessed_at)
		VALUES (?, ?, ?, ?)
	`, url, string(output), now, now)

	if err != nil {
		slog.Warn("episode cache write error", "error", err, "url", truncate(url, 50))
		return err
	}

	return nil
}

func (c *Cache) touch(table, url string) {
	_, _ = c.db.Exec(
		"UPDATE "+table+" SET accessed_at = ? WHERE url = ?",
		time.Now().Unix(), url,
	)
}

// Clear removes all cache entries
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM document_cache"); err != nil {
		return fmt.Errorf("failed to clear document cache: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM episode_cache"); err != nil {
		return fmt.Errorf("failed to clear episode cache: %w", err)
	}
	return nil
}

// Stats returns cache statistics
func (c *Cache) Stats() (CacheStats, error) {
	var stats CacheStats

	err := c.db.QueryRow("SELECT COUNT(*) FROM document_cache").Scan(&stats.DocumentEntries)
	if err != nil {
		return stats, err
	}

	err = c.db.QueryRow("SELECT COUNT(*) FROM episode_cache").Scan(&stats.EpisodeEntries)
	if err != nil {
		return stats, err
	}

	var oldestUnix sql.NullInt64
	err = c.db.QueryRow(`
		SELECT MIN(created_at) FROM (
			SELECT created_at FROM document_cache
			UNION ALL
			SELECT created_at FROM episode_cache
		)
	`).Scan(&oldestUnix)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, err
	}
	if oldestUnix.Valid && oldestUnix.Int64 > 0 {
		stats.OldestEntry = time.Unix(oldestUnix.Int64, 0)
	}

	return stats, nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DefaultCachePath returns the default cache database path
func DefaultCachePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "cache.db" // Fallback to current directory
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "podfeed", "cache.db")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
