package sitemap

import "github.com/vlatan/news-sitemap/internal/models"

// Alternate is an alternate-link entry for a url block,
// e.g. an AMP equivalent or a hreflang alternate.
type Alternate struct {
	Rel      string // "amphtml" or "alternate"
	Hreflang string // only for rel="alternate"
	Href     string
}

// ArticleFilter is a pluggable exclusion strategy,
// applied after the built-in filters.
type ArticleFilter interface {
	Exclude(article models.Article) bool
}

// ArticleEnricher supplies extra alternate links per article
type ArticleEnricher interface {
	Alternates(article models.Article) []Alternate
}

type noopFilter struct{}

func (noopFilter) Exclude(models.Article) bool { return false }

type noopEnricher struct{}

func (noopEnricher) Alternates(models.Article) []Alternate { return nil }
