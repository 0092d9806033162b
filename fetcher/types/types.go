package types

import (
	"context"
	"time"
)

// Validators are the cache validators of a previously fetched document
type Validators struct {
	ETag         string
	LastModified string
}

// IsZero reports whether no validator is set
func (v Validators) IsZero() bool {
	return v.ETag == "" && v.LastModified == ""
}

// Document is the raw content of a feed as returned by a fetcher
type Document struct {
	URL          string
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool // Server answered 304, Body is empty
	FetchedAt    time.Time
}

// Validators returns the validators to send on the next fetch
func (d Document) Validators() Validators {
	return Validators{ETag: d.ETag, LastModified: d.LastModified}
}

// DocumentFetcher retrieves raw feed documents
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string, v Validators) (Document, error)
}
