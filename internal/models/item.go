package models

import (
	"context"
)

type SourceKind string

const (
	KindYouTube SourceKind = "youtube"
	KindArticle SourceKind = "article"
)

type Source struct {
	Name      string     `yaml:"name" json:"name"`
	URL       string     `yaml:"url" json:"url"`
	Kind      SourceKind `yaml:"kind" json:"kind"`
	Languages []string   `yaml:"languages,omitempty" json:"languages,omitempty"`
}

// Item is one entry of a feed. Published is kept as the feed wrote it.
// Description is empty when the feed carries neither a summary nor a
// media description.
type Item struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Published   string `json:"published"`
	Description string `json:"description,omitempty"`
}

func (i Item) HasDescription() bool {
	return i.Description != ""
}

// FeedSource lists the entries of a feed, newest first.
type FeedSource interface {
	ListEntries(ctx context.Context, src Source) ([]Item, error)
}

type Message struct {
	Subject string
	Body    string
}

type MessagePart struct {
	Text  string
	Index int
	Total int
}
