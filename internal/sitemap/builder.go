// Package sitemap builds the Google News sitemap XML document.
// The builder is a pure function over articles and options, it does
// no I/O and always produces well-formed XML, an empty urlset in the
// worst case.
package sitemap

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vlatan/news-sitemap/internal/models"
)

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	newsNS    = "http://www.google.com/schemas/sitemap-news/0.9"
	imageNS   = "http://www.google.com/schemas/sitemap-image/1.1"
	xhtmlNS   = "http://www.w3.org/1999/xhtml"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

	maxKeywords = 10
	maxTickers  = 5

	// Google prefers large images, so anything at least
	// this wide is listed before the rest.
	largeImageWidth = 1200

	// The taxonomy placeholder that carries no signal
	defaultTerm = "Uncategorized"
)

// EmptyDocument is the valid, empty sitemap served when there is
// nothing to list or when a build failed.
const EmptyDocument = xmlHeader +
	`<urlset xmlns="` + sitemapNS + `" xmlns:news="` + newsNS + `"></urlset>`

// Options configures one build. The zero value is not usable,
// callers derive it from the app config once.
type Options struct {
	SiteHost            string
	PublicationName     string
	Language            string
	MaxURLs             int
	RespectNoindex      bool
	EmitKeywords        bool
	DefaultGenres       []string
	DefaultImageLicense string

	// Optional strategies, nil means no-op
	Filter   ArticleFilter
	Enricher ArticleEnricher
}

// Escapes XML special characters in text nodes and attribute values
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
)

// Build maps a list of articles to a complete sitemap document.
// Deterministic: identical inputs yield byte-identical output.
func Build(articles []models.Article, opts Options) string {

	if opts.Filter == nil {
		opts.Filter = noopFilter{}
	}
	if opts.Enricher == nil {
		opts.Enricher = noopEnricher{}
	}

	var keep []models.Article
	for _, article := range articles {
		if eligible(article, opts) {
			keep = append(keep, article)
		}
	}

	// Newest first, stable so equal timestamps keep the input order
	sort.SliceStable(keep, func(i, j int) bool {
		return keep[i].Published.After(keep[j].Published)
	})

	if opts.MaxURLs > 0 && len(keep) > opts.MaxURLs {
		keep = keep[:opts.MaxURLs]
	}

	if len(keep) == 0 {
		return EmptyDocument
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<urlset xmlns="` + sitemapNS +
		`" xmlns:news="` + newsNS +
		`" xmlns:image="` + imageNS +
		`" xmlns:xhtml="` + xhtmlNS + `">`)

	for _, article := range keep {
		writeURL(&b, article, opts)
	}

	b.WriteString(`</urlset>`)
	return b.String()
}

// eligible applies the built-in filters, then the pluggable one
func eligible(a models.Article, opts Options) bool {

	// Anti-leak guard, never list foreign hosts
	u, err := url.Parse(a.Loc)
	if err != nil || !strings.EqualFold(u.Hostname(), opts.SiteHost) {
		return false
	}

	if opts.RespectNoindex && (a.Noindex || a.Exclude) {
		return false
	}

	// A foreign canonical URL means this article is a duplicate,
	// not the authoritative page.
	if a.CanonicalURL != "" && a.CanonicalURL != a.Loc {
		return false
	}

	return !opts.Filter.Exclude(a)
}

func writeURL(b *strings.Builder, a models.Article, opts Options) {

	b.WriteString(`<url>`)
	b.WriteString(`<loc>` + escaper.Replace(a.Loc) + `</loc>`)
	b.WriteString(`<lastmod>` + a.Modified.UTC().Format(time.RFC3339) + `</lastmod>`)

	for _, img := range sortedImages(a.Images) {
		writeImage(b, img, opts)
	}

	b.WriteString(`<news:news>`)
	b.WriteString(`<news:publication>`)
	b.WriteString(`<news:name>` + cdata(opts.PublicationName) + `</news:name>`)
	b.WriteString(`<news:language>` + escaper.Replace(opts.Language) + `</news:language>`)
	b.WriteString(`</news:publication>`)
	b.WriteString(`<news:publication_date>` + a.Published.UTC().Format(time.RFC3339) + `</news:publication_date>`)
	b.WriteString(`<news:title>` + cdata(a.Title) + `</news:title>`)

	if genres := articleGenres(a, opts); len(genres) > 0 {
		b.WriteString(`<news:genres>` + escaper.Replace(strings.Join(genres, ", ")) + `</news:genres>`)
	}

	if opts.EmitKeywords {
		if keywords := articleKeywords(a); len(keywords) > 0 {
			b.WriteString(`<news:keywords>` + cdata(strings.Join(keywords, ", ")) + `</news:keywords>`)
		}
	}

	if tickers := articleTickers(a); len(tickers) > 0 {
		b.WriteString(`<news:stock_tickers>` + escaper.Replace(strings.Join(tickers, ", ")) + `</news:stock_tickers>`)
	}

	b.WriteString(`</news:news>`)

	for _, alt := range opts.Enricher.Alternates(a) {
		writeAlternate(b, alt)
	}

	b.WriteString(`</url>`)
}

func writeImage(b *strings.Builder, img models.ArticleImage, opts Options) {

	if img.URL == "" {
		return
	}

	b.WriteString(`<image:image>`)
	b.WriteString(`<image:loc>` + escaper.Replace(img.URL) + `</image:loc>`)

	if img.Title != "" {
		b.WriteString(`<image:title>` + cdata(img.Title) + `</image:title>`)
	}
	if img.Caption != "" {
		b.WriteString(`<image:caption>` + cdata(img.Caption) + `</image:caption>`)
	}

	license := img.License
	if license == "" {
		license = opts.DefaultImageLicense
	}
	if license != "" {
		b.WriteString(`<image:license>` + escaper.Replace(license) + `</image:license>`)
	}

	b.WriteString(`</image:image>`)
}

func writeAlternate(b *strings.Builder, alt Alternate) {

	if alt.Href == "" || alt.Rel == "" {
		return
	}

	b.WriteString(`<xhtml:link rel="` + escaper.Replace(alt.Rel) + `"`)
	if alt.Hreflang != "" {
		b.WriteString(` hreflang="` + escaper.Replace(alt.Hreflang) + `"`)
	}
	b.WriteString(` href="` + escaper.Replace(alt.Href) + `"/>`)
}

// sortedImages returns a copy with large images first,
// otherwise keeping the discovery order.
func sortedImages(images []models.ArticleImage) []models.ArticleImage {
	sorted := make([]models.ArticleImage, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Width >= largeImageWidth && sorted[j].Width < largeImageWidth
	})
	return sorted
}

// articleGenres picks the article override when it validates,
// else the site default set, else nothing.
func articleGenres(a models.Article, opts Options) []string {
	if genres := ValidGenres(a.Genres); len(genres) > 0 {
		return genres
	}
	return ValidGenres(opts.DefaultGenres)
}

// articleKeywords dedupes and caps the taxonomy terms.
// A sole placeholder term carries no signal and is dropped.
func articleKeywords(a models.Article) []string {

	var keywords []string
	seen := make(map[string]bool, len(a.Terms))
	for _, term := range a.Terms {
		term = strings.TrimSpace(term)
		if term == "" || seen[term] {
			continue
		}
		keywords = append(keywords, term)
		seen[term] = true
	}

	if len(keywords) == 1 && strings.EqualFold(keywords[0], defaultTerm) {
		return nil
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	return keywords
}

func articleTickers(a models.Article) []string {

	var tickers []string
	for _, ticker := range a.StockTickers {
		ticker = strings.TrimSpace(ticker)
		if ticker != "" {
			tickers = append(tickers, ticker)
		}
	}

	if len(tickers) > maxTickers {
		tickers = tickers[:maxTickers]
	}

	return tickers
}

// cdata wraps a string as a literal CDATA section, splitting any
// embedded terminator so markup or ampersands can't break the XML.
func cdata(s string) string {
	return `<![CDATA[` + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + `]]>`
}
