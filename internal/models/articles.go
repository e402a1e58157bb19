package models

import "time"

// ArticleImage is one image attached to an article
type ArticleImage struct {
	URL     string
	Width   int
	Title   string
	Caption string
	License string
}

// Article is the read-only view of a published post
// as the sitemap pipeline consumes it.
type Article struct {
	ID        int
	Loc       string // permalink
	Title     string // plain text, markup already stripped
	PostType  string
	Status    string
	Published time.Time
	Modified  time.Time
	Terms     []string
	Noindex   bool
	Exclude   bool

	// Per-article overrides
	Genres       []string
	StockTickers []string
	Images       []ArticleImage

	// Canonical URL set by a third-party SEO layer.
	// Empty means the permalink is authoritative.
	CanonicalURL string
}
