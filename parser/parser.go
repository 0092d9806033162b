package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// ErrUpstreamFailure wraps every error reported by an event source
// (malformed XML, I/O failure). It is the only error Extract produces
// besides context cancellation.
var ErrUpstreamFailure = errors.New("upstream failure")

// Element names that drive the extractor
const (
	itemTag        = "item"
	titleTag       = "title"
	descriptionTag = "description"
	enclosureTag   = "enclosure"
	urlAttr        = "url"
)

// Episode is one <item> of a podcast feed
type Episode struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AudioURL    *string `json:"audio_url,omitempty"`
}

// Audio returns the enclosure URL and whether one was observed
func (e Episode) Audio() (string, bool) {
	if e.AudioURL == nil {
		return "", false
	}
	return *e.AudioURL, true
}

// cursor names the field the next text event is written into
type cursor int

const (
	neutral cursor = iota
	expectTitle
	expectDescription
)

// extractor holds the in-progress record and cursor of a single pass
type extractor struct {
	current Episode
	cur     cursor
}

// feed advances the state machine by one event. It returns the finalized
// episode and true when the event closed an item boundary.
func (x *extractor) feed(ev Event) (Episode, bool) {
	switch ev.Kind {
	case KindOpen:
		switch localName(ev.Name) {
		case titleTag:
			x.cur = expectTitle
		case descriptionTag:
			x.cur = expectDescription
		case enclosureTag:
			for _, attr := range ev.Attrs {
				if localName(attr.Name) == urlAttr {
					u := attr.Value
					x.current.AudioURL = &u
					break
				}
			}
		}
	case KindText:
		switch x.cur {
		case expectTitle:
			x.current.Title = ev.Text
			x.cur = neutral
		case expectDescription:
			x.current.Description = ev.Text
			x.cur = neutral
		}
	case KindClose:
		// Nested items are not tracked, the first close finalizes.
		if localName(ev.Name) == itemTag {
			done := x.current
			x.current = Episode{}
			x.cur = neutral
			return done, true
		}
	}
	return Episode{}, false
}

// Extract consumes src until io.EOF and returns one episode per closed
// item boundary, in document order. An item still open at the end of the
// stream is dropped. Any source error aborts the extraction and no
// episodes are returned.
func Extract(ctx context.Context, src Source) ([]Episode, error) {
	episodes := []Episode{}
	for ep, err := range scan(ctx, src) {
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// All lazily runs the extractor over src, yielding each episode as soon
// as its closing item tag is seen. A source error is yielded once and
// ends the sequence. Stopping early discards the in-progress record.
func All(src Source) iter.Seq2[Episode, error] {
	return scan(context.Background(), src)
}

func scan(ctx context.Context, src Source) iter.Seq2[Episode, error] {
	return func(yield func(Episode, error) bool) {
		var x extractor
		for {
			if err := ctx.Err(); err != nil {
				yield(Episode{}, err)
				return
			}
			ev, err := src.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Episode{}, fmt.Errorf("%w: %w", ErrUpstreamFailure, err))
				return
			}
			if ep, ok := x.feed(ev); ok {
				if !yield(ep, nil) {
					return
				}
			}
		}
	}
}

// localName strips a namespace prefix ("itunes:title" -> "title")
func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
