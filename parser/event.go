package parser

import "io"

// Kind classifies a tokenized XML event
type Kind int

const (
	// KindOther covers comments, processing instructions and anything else
	// the extractor ignores
	KindOther Kind = iota
	KindOpen
	KindClose
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindText:
		return "text"
	default:
		return "other"
	}
}

// Attr is a single element attribute
type Attr struct {
	Name  string
	Value string
}

// Event is one tokenized XML event. Name and Attrs are set for open
// events, Name for close events, Text for text events.
type Event struct {
	Kind  Kind
	Name  string
	Attrs []Attr
	Text  string
}

func Open(name string, attrs ...Attr) Event {
	return Event{Kind: KindOpen, Name: name, Attrs: attrs}
}

func Close(name string) Event {
	return Event{Kind: KindClose, Name: name}
}

func Text(content string) Event {
	return Event{Kind: KindText, Text: content}
}

func Other() Event {
	return Event{Kind: KindOther}
}

// Source produces events in document order. Next returns io.EOF once the
// stream is exhausted.
type Source interface {
	Next() (Event, error)
}

// Events returns a Source replaying evs. Each call returns an independent
// source, so the same slice can be extracted repeatedly.
func Events(evs ...Event) Source {
	return &sliceSource{events: evs}
}

type sliceSource struct {
	events []Event
	pos    int
}

func (s *sliceSource) Next() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}
