package report

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/scipunch/podfeed/feed"
	"github.com/scipunch/podfeed/filter"
	"github.com/scipunch/podfeed/parser"
)

//go:embed templates/*.html
var templatesFS embed.FS

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"anchor": Anchor,
	"text":   filter.PlainText,
}).ParseFS(templatesFS, "templates/*.html"))

// Report is the rendered set of feeds
type Report struct {
	Title       string      `json:"title"`
	GeneratedAt time.Time   `json:"generated_at"`
	Feeds       []feed.Feed `json:"feeds"`
}

// EpisodeCount returns the number of episodes across all feeds
func (r Report) EpisodeCount() int {
	n := 0
	for _, f := range r.Feeds {
		n += len(f.Episodes)
	}
	return n
}

// Render writes the report as an HTML page
func Render(w io.Writer, r Report) error {
	if err := tmpl.ExecuteTemplate(w, "episodes.html", r); err != nil {
		return fmt.Errorf("could not render episodes HTML with %w", err)
	}
	return nil
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("could not encode episodes JSON with %w", err)
	}
	return nil
}

// Anchor returns a stable HTML id for an episode
func Anchor(ep parser.Episode) string {
	key := ep.Title
	if u, ok := ep.Audio(); ok {
		key += "\x00" + u
	}
	hash := sha256.Sum256([]byte(key))
	return "ep-" + hex.EncodeToString(hash[:8])
}
