package fetcher

import (
	"fmt"

	"github.com/scipunch/podfeed/config"
	"github.com/scipunch/podfeed/fetcher/types"
)

// GetFetchers creates a map of resource types to their corresponding fetchers
func GetFetchers(resourceTypes []config.ResourceType, opts Options) (map[config.ResourceType]types.DocumentFetcher, error) {
	fetchers := make(map[config.ResourceType]types.DocumentFetcher)

	for _, rt := range resourceTypes {
		// Skip if we already have a fetcher for this type
		if fetchers[rt] != nil {
			continue
		}

		switch rt {
		case config.RSS:
			fetchers[rt] = NewHTTPFetcher(opts)
		case config.File:
			fetchers[rt] = NewFileFetcher()
		default:
			return nil, fmt.Errorf("unknown resource type: %s", rt)
		}
	}

	return fetchers, nil
}
