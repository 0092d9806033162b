// Package xmlstream turns a raw feed document into parser events using the
// goxpp pull parser.
package xmlstream

import (
	"errors"
	"fmt"
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"

	"github.com/scipunch/podfeed/parser"
)

// Source pulls one token at a time from the underlying document
type Source struct {
	p    *xpp.XMLPullParser
	done bool
}

type options struct {
	strict bool
}

// Option configures a Source
type Option func(*options)

// WithStrict controls whether the decoder rejects malformed markup.
// Strict decoding is the default.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// New creates a Source reading XML from r. Non UTF-8 documents are decoded
// according to their XML declaration.
func New(r io.Reader, opts ...Option) *Source {
	o := options{strict: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Source{
		p: xpp.NewXMLPullParser(r, o.strict, charset.NewReaderLabel),
	}
}

// Next implements parser.Source
func (s *Source) Next() (parser.Event, error) {
	if s.done {
		return parser.Event{}, io.EOF
	}

	ev, err := s.p.NextToken()
	if errors.Is(err, io.EOF) {
		s.done = true
		return parser.Event{}, io.EOF
	}
	if err != nil {
		return parser.Event{}, fmt.Errorf("failed to read XML token with %w", err)
	}

	switch ev {
	case xpp.StartTag:
		attrs := make([]parser.Attr, 0, len(s.p.Attrs))
		for _, a := range s.p.Attrs {
			attrs = append(attrs, parser.Attr{Name: a.Name.Local, Value: a.Value})
		}
		return parser.Open(s.p.Name, attrs...), nil
	case xpp.EndTag:
		return parser.Close(s.p.Name), nil
	case xpp.Text:
		// Indentation between elements carries no content
		if strings.TrimSpace(s.p.Text) == "" {
			return parser.Other(), nil
		}
		return parser.Text(s.p.Text), nil
	case xpp.EndDocument:
		s.done = true
		return parser.Event{}, io.EOF
	default:
		return parser.Other(), nil
	}
}
