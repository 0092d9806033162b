package fetcher

import (
	"time"

	"github.com/scipunch/podfeed/fetcher/types"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultUserAgent    = "podfeed/1.0 (+https://github.com/scipunch/podfeed)"
	DefaultMaxBodyBytes = 32 << 20
)

// Options tune the network fetchers
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	UserAgent    string
	MaxBodyBytes int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

var (
	_ types.DocumentFetcher = (*HTTPFetcher)(nil)
	_ types.DocumentFetcher = (*FileFetcher)(nil)
)
