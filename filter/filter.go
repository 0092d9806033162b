package filter

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/scipunch/podfeed/config"
	"github.com/scipunch/podfeed/parser"
)

// FilterPipeline applies a series of named filters to episodes
type FilterPipeline struct {
	filters map[string]*CompiledFilter
}

// CompiledFilter contains compiled regex patterns for efficient matching
type CompiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
	patternSources  []string
}

// NewFilterPipeline creates a new filter pipeline from config
func NewFilterPipeline(filtersConfig map[string]config.Filter) (*FilterPipeline, error) {
	compiled := make(map[string]*CompiledFilter)

	for name, filterCfg := range filtersConfig {
		cf := &CompiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}

		// Compile regex patterns
		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("invalid regex pattern in filter", "filter", name, "pattern", pattern, "error", err)
				continue
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
			cf.patternSources = append(cf.patternSources, pattern)
		}

		compiled[name] = cf
	}

	return &FilterPipeline{filters: compiled}, nil
}

// ShouldInclude returns true if the episode passes all filters in the pipeline
// filterNames is a list of filter names to apply in order
func (fp *FilterPipeline) ShouldInclude(ep parser.Episode, filterNames []string) (bool, string) {
	if len(filterNames) == 0 {
		return true, "" // No filters = include everything
	}

	for _, filterName := range filterNames {
		filter, exists := fp.filters[filterName]
		if !exists {
			slog.Warn("filter not found, skipping", "filter_name", filterName)
			continue
		}

		if shouldInclude, reason := fp.applyFilter(ep, filter, filterName); !shouldInclude {
			return false, reason
		}
	}

	return true, ""
}

// applyFilter applies a single filter to an episode
func (fp *FilterPipeline) applyFilter(ep parser.Episode, filter *CompiledFilter, filterName string) (bool, string) {
	// Descriptions are usually HTML, analyze the visible text only
	text := ep.Title + " " + PlainText(ep.Description)

	if filter.config.RequireAudio {
		if _, ok := ep.Audio(); !ok {
			return false, filterName + ":require_audio"
		}
	}

	if filter.config.MinLength > 0 && len([]rune(text)) < filter.config.MinLength {
		return false, filterName + ":min_length"
	}

	if filter.config.MinWords > 0 && countWords(text) < filter.config.MinWords {
		return false, filterName + ":min_words"
	}

	for i, pattern := range filter.excludePatterns {
		if pattern.MatchString(text) {
			return false, filterName + ":exclude_pattern[" + filter.patternSources[i] + "]"
		}
	}

	if filter.config.RequireParagraphs && !hasMultipleParagraphs(text) {
		return false, filterName + ":require_paragraphs"
	}

	return true, ""
}

// countWords counts runs of letters and digits
func countWords(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// hasMultipleParagraphs reports whether text has at least two non-blank lines
func hasMultipleParagraphs(text string) bool {
	seen := 0
	for line := range strings.Lines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if seen++; seen == 2 {
			return true
		}
	}
	return false
}

// PlainText strips HTML markup, keeping line breaks between block elements
func PlainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return strings.TrimSpace(doc.Text())
}
