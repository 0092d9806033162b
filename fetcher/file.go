package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/scipunch/podfeed/fetcher/types"
)

// FileFetcher reads feed documents from the local filesystem. It accepts
// plain paths and file:// URLs.
type FileFetcher struct{}

// NewFileFetcher creates a new file fetcher
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

// Fetch reads the whole file. The modification time serves as the
// Last-Modified validator.
func (f *FileFetcher) Fetch(ctx context.Context, location string, v types.Validators) (types.Document, error) {
	doc := types.Document{URL: location}
	if err := ctx.Err(); err != nil {
		return doc, err
	}

	path, err := filePath(location)
	if err != nil {
		return doc, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return doc, fmt.Errorf("failed to stat feed file '%s' with %w", path, err)
	}
	doc.FetchedAt = time.Now()
	doc.LastModified = info.ModTime().UTC().Format(time.RFC1123)
	if v.LastModified != "" && v.LastModified == doc.LastModified {
		doc.NotModified = true
		return doc, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("failed to read feed file '%s' with %w", path, err)
	}
	doc.Body = body
	return doc, nil
}

func filePath(location string) (string, error) {
	if !strings.HasPrefix(location, "file://") {
		return location, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid file URL '%s' with %w", location, err)
	}
	return u.Path, nil
}
