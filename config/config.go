package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
)

type ResourceType = string

var (
	RSS  = ResourceType("rss")
	File = ResourceType("file")
)

const baseCfgPath = "podfeed/config.toml"

type Config struct {
	Resources       []ResourceConfig  `toml:"resources"`
	DatabasePath    string            `toml:"database_path"`
	OutputDirectory string            `toml:"output_directory"` // Directory for generated files (defaults to $HOME/podfeed)
	Filters         map[string]Filter `toml:"filters"`          // Named filters that can be referenced by resources
	Fetch           FetchConfig       `toml:"fetch"`
	StrictXML       bool              `toml:"strict_xml"`  // Reject malformed feed markup
	Concurrency     int               `toml:"concurrency"` // Feeds loaded in parallel
}

type ResourceConfig struct {
	FeedURL     string       `toml:"feed_url"`
	T           ResourceType `toml:"type"`
	Enabled     *bool        `toml:"enabled"` // Whether this resource is active (defaults to true if not set)
	FilterNames []string     `toml:"filters"` // Names of filters to apply (pipeline)
}

// FetchConfig tunes network access
type FetchConfig struct {
	Timeout      Duration `toml:"timeout"`
	MaxRetries   int      `toml:"max_retries"`
	UserAgent    string   `toml:"user_agent"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
}

// Filter defines rules for filtering episodes
type Filter struct {
	MinLength         int      `toml:"min_length"`         // Minimum character count (0 = no limit)
	MinWords          int      `toml:"min_words"`          // Minimum word count (0 = no limit)
	ExcludePatterns   []string `toml:"exclude_patterns"`   // Regex patterns to exclude
	RequireParagraphs bool     `toml:"require_paragraphs"` // Must have multiple lines/paragraphs
	RequireAudio      bool     `toml:"require_audio"`      // Must carry an enclosure URL
}

// Duration is a time.Duration written as a string ("30s") in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q with %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// IsEnabled returns true if the resource is enabled (defaults to true if not explicitly set)
func (r ResourceConfig) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// Type returns the resource type, treating an empty value as RSS
func (r ResourceConfig) Type() ResourceType {
	if r.T == "" {
		return RSS
	}
	return r.T
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s with %w", path, err)
	}
	return conf, nil
}

// Validate checks cross-field references
func (c Config) Validate() error {
	for i, r := range c.Resources {
		if r.FeedURL == "" {
			return fmt.Errorf("resource #%d has no feed_url", i)
		}
		switch r.Type() {
		case RSS, File:
		default:
			return fmt.Errorf("resource '%s' has unknown type '%s'", r.FeedURL, r.T)
		}
		for _, name := range r.FilterNames {
			if _, ok := c.Filters[name]; !ok {
				return fmt.Errorf("resource '%s' references unknown filter '%s'", r.FeedURL, name)
			}
		}
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

func Default() Config {
	var dbBase = path.Join(os.Getenv("HOME"), ".local/share/podfeed")
	var home = os.Getenv("HOME")
	var outputDir = path.Join(home, "podfeed")
	return Config{
		DatabasePath:    path.Join(dbBase, "data.db"),
		OutputDirectory: outputDir,
		Resources:       []ResourceConfig{},
		Fetch: FetchConfig{
			Timeout:    Duration{30 * time.Second},
			MaxRetries: 3,
		},
		StrictXML:   true,
		Concurrency: 4,
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config file")
}
