package parser

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// Channel holds feed-level metadata shown alongside the episodes
type Channel struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Language    string `json:"language"`
	Author      string `json:"author"`
	ImageURL    string `json:"image_url"`
}

// ParseChannel reads channel metadata from a raw feed document using gofeed
func ParseChannel(body []byte) (Channel, error) {
	var ch Channel

	f, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return ch, fmt.Errorf("failed to parse channel metadata with %w", err)
	}

	ch.Title = f.Title
	ch.Description = f.Description
	ch.Link = f.Link
	ch.Language = f.Language
	if len(f.Authors) > 0 && f.Authors[0] != nil {
		ch.Author = f.Authors[0].Name
	}
	if f.ITunesExt != nil && ch.Author == "" {
		ch.Author = f.ITunesExt.Author
	}
	if f.Image != nil {
		ch.ImageURL = f.Image.URL
	} else if f.ITunesExt != nil {
		ch.ImageURL = f.ITunesExt.Image
	}

	return ch, nil
}
