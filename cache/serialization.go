package cache

import (
	"encoding/json"
	"fmt"

	"github.com/scipunch/podfeed/parser"
)

// episodesFormat is bumped whenever the stored episode shape changes
const episodesFormat = 1

// CachedEpisodes wraps extracted episodes for serialization
type CachedEpisodes struct {
	Format   int              `json:"format"`
	Episodes []parser.Episode `json:"episodes"`
}

// SerializeEpisodes converts episodes to JSON bytes
func SerializeEpisodes(episodes []parser.Episode) ([]byte, error) {
	if episodes == nil {
		episodes = []parser.Episode{}
	}
	data, err := json.Marshal(CachedEpisodes{Format: episodesFormat, Episodes: episodes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal episodes: %w", err)
	}
	return data, nil
}

// DeserializeEpisodes converts JSON bytes back to episodes
func DeserializeEpisodes(data []byte) ([]parser.Episode, error) {
	var cached CachedEpisodes
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached episodes: %w", err)
	}

	if cached.Format != episodesFormat {
		return nil, fmt.Errorf("episode format mismatch: cached=%d, expected=%d", cached.Format, episodesFormat)
	}
	if cached.Episodes == nil {
		cached.Episodes = []parser.Episode{}
	}

	return cached.Episodes, nil
}
