package sitemap

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/vlatan/news-sitemap/internal/models"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testOptions returns sane build options for example.com
func testOptions() Options {
	return Options{
		SiteHost:        "example.com",
		PublicationName: "Example News",
		Language:        "en",
		MaxURLs:         1000,
		RespectNoindex:  true,
		EmitKeywords:    true,
	}
}

// testArticle returns a minimal valid article, offset hours in the past
func testArticle(id int, hoursAgo int) models.Article {
	published := testTime.Add(-time.Duration(hoursAgo) * time.Hour)
	return models.Article{
		ID:        id,
		Loc:       fmt.Sprintf("https://example.com/post-%d/", id),
		Title:     fmt.Sprintf("Post %d", id),
		PostType:  "post",
		Status:    "publish",
		Published: published,
		Modified:  published.Add(10 * time.Minute),
	}
}

// wellFormed runs the full XML token stream and fails the test on any error
func wellFormed(t *testing.T, doc string) {
	t.Helper()
	decoder := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("document is not well-formed XML: %v\n%s", err, doc)
		}
	}
}

// elementText returns the character data of the first occurrence of
// the named element, CDATA included.
func elementText(t *testing.T, doc, local string) string {
	t.Helper()
	decoder := xml.NewDecoder(strings.NewReader(doc))
	var inside bool
	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to tokenize document: %v", err)
		}
		switch tok := token.(type) {
		case xml.StartElement:
			inside = tok.Name.Local == local
		case xml.CharData:
			if inside {
				text.Write(tok)
			}
		case xml.EndElement:
			if inside && tok.Name.Local == local {
				return text.String()
			}
		}
	}
	t.Fatalf("element %q not found in document:\n%s", local, doc)
	return ""
}

func TestBuildEmptySource(t *testing.T) {

	got := Build(nil, testOptions())
	want := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"` +
		` xmlns:news="http://www.google.com/schemas/sitemap-news/0.9"></urlset>`

	if got != want {
		t.Errorf("empty build mismatch:\ngot:  %s\nwant: %s", got, want)
	}

	wellFormed(t, got)

	if got != EmptyDocument {
		t.Error("empty build should equal the shared empty document")
	}
}

func TestBuildSingleArticle(t *testing.T) {

	opts := testOptions()
	opts.EmitKeywords = false

	doc := Build([]models.Article{testArticle(1, 2)}, opts)
	wellFormed(t, doc)

	if n := strings.Count(doc, "<url>"); n != 1 {
		t.Fatalf("got %d url blocks, want 1", n)
	}

	for _, want := range []string{
		"<loc>https://example.com/post-1/</loc>",
		"<lastmod>",
		"<news:news>",
		"<news:name><![CDATA[Example News]]></news:name>",
		"<news:language>en</news:language>",
		"<news:publication_date>",
		"<news:title><![CDATA[Post 1]]></news:title>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	for _, unwanted := range []string{
		"<image:image>", "<news:genres>", "<news:keywords>", "<news:stock_tickers>", "<xhtml:link",
	} {
		if strings.Contains(doc, unwanted) {
			t.Errorf("document should not contain %q:\n%s", unwanted, doc)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {

	articles := []models.Article{testArticle(1, 1), testArticle(2, 5), testArticle(3, 3)}
	articles[0].Terms = []string{"Aviation", "Travel"}
	articles[1].Images = []models.ArticleImage{{URL: "https://example.com/img.jpg", Width: 1600}}

	first := Build(articles, testOptions())
	second := Build(articles, testOptions())
	if first != second {
		t.Error("two builds with identical inputs are not byte-identical")
	}
}

type hostFilter struct{ substr string }

func (f hostFilter) Exclude(a models.Article) bool {
	return strings.Contains(a.Loc, f.substr)
}

func TestBuildFiltering(t *testing.T) {

	foreign := testArticle(2, 2)
	foreign.Loc = "https://other.example.org/post-2/"

	noindexed := testArticle(3, 3)
	noindexed.Noindex = true

	excluded := testArticle(4, 4)
	excluded.Exclude = true

	duplicated := testArticle(5, 5)
	duplicated.CanonicalURL = "https://example.com/the-original/"

	canonicalSelf := testArticle(6, 6)
	canonicalSelf.CanonicalURL = canonicalSelf.Loc

	custom := testArticle(7, 7)

	articles := []models.Article{
		testArticle(1, 1), foreign, noindexed, excluded, duplicated, canonicalSelf, custom,
	}

	opts := testOptions()
	opts.Filter = hostFilter{substr: "post-7"}

	doc := Build(articles, opts)
	wellFormed(t, doc)

	wantIn := []string{"post-1", "post-6"}
	wantOut := []string{"post-2", "post-3", "post-4", "post-5", "post-7"}

	for _, want := range wantIn {
		if !strings.Contains(doc, want) {
			t.Errorf("document should contain %q:\n%s", want, doc)
		}
	}
	for _, unwanted := range wantOut {
		if strings.Contains(doc, unwanted) {
			t.Errorf("document should not contain %q:\n%s", unwanted, doc)
		}
	}
}

func TestBuildNoindexNotRespected(t *testing.T) {

	noindexed := testArticle(1, 1)
	noindexed.Noindex = true

	opts := testOptions()
	opts.RespectNoindex = false

	doc := Build([]models.Article{noindexed}, opts)
	if !strings.Contains(doc, "post-1") {
		t.Error("noindexed article should appear when noindex-respect is off")
	}
}

func TestBuildCapAndOrder(t *testing.T) {

	// Input deliberately out of order
	articles := []models.Article{
		testArticle(1, 30), testArticle(2, 10),
		testArticle(3, 40), testArticle(4, 1), testArticle(5, 20),
	}

	opts := testOptions()
	opts.MaxURLs = 3

	doc := Build(articles, opts)
	wellFormed(t, doc)

	if n := strings.Count(doc, "<url>"); n != 3 {
		t.Fatalf("got %d url blocks, want 3", n)
	}

	// Expect the three newest, newest first
	var positions []int
	for _, id := range []string{"post-4", "post-2", "post-5"} {
		pos := strings.Index(doc, id)
		if pos == -1 {
			t.Fatalf("document missing %q:\n%s", id, doc)
		}
		positions = append(positions, pos)
	}

	for i := 1; i < len(positions); i++ {
		if positions[i] < positions[i-1] {
			t.Errorf("articles are not in descending publish-date order:\n%s", doc)
		}
	}

	if strings.Contains(doc, "post-1") || strings.Contains(doc, "post-3") {
		t.Errorf("oldest articles should be capped away:\n%s", doc)
	}
}

func TestBuildImageOrdering(t *testing.T) {

	article := testArticle(1, 2)
	article.Images = []models.ArticleImage{
		{URL: "https://example.com/small.jpg", Width: 800},
		{URL: "https://example.com/large.jpg", Width: 1600},
	}

	doc := Build([]models.Article{article}, testOptions())
	wellFormed(t, doc)

	large := strings.Index(doc, "large.jpg")
	small := strings.Index(doc, "small.jpg")
	if large == -1 || small == -1 {
		t.Fatalf("both images should be present:\n%s", doc)
	}
	if large > small {
		t.Errorf("the >=1200px image should come first:\n%s", doc)
	}
}

func TestBuildImageFields(t *testing.T) {

	article := testArticle(1, 2)
	article.Images = []models.ArticleImage{
		{URL: "https://example.com/a.jpg", Width: 1600, Title: "A title", Caption: "A caption"},
		{URL: "https://example.com/b.jpg", Width: 1600, License: "https://example.com/own-license"},
	}

	opts := testOptions()
	opts.DefaultImageLicense = "https://example.com/license"

	doc := Build([]models.Article{article}, opts)
	wellFormed(t, doc)

	for _, want := range []string{
		"<image:title><![CDATA[A title]]></image:title>",
		"<image:caption><![CDATA[A caption]]></image:caption>",
		// First image falls back to the default license
		"<image:license>https://example.com/license</image:license>",
		// Second image keeps its own
		"<image:license>https://example.com/own-license</image:license>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestBuildGenres(t *testing.T) {

	tests := []struct {
		name     string
		override []string
		defaults []string
		want     string // empty means the element must be absent
	}{
		{"override wins", []string{"OpEd"}, []string{"Blog"}, "OpEd"},
		{"invalid override falls back", []string{"Nonsense"}, []string{"Blog"}, "Blog"},
		{"defaults filtered", nil, []string{"Blog", "Junk", "Satire"}, "Blog, Satire"},
		{"nothing valid omitted", []string{"Junk"}, []string{"AlsoJunk"}, ""},
		{"none at all omitted", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := testArticle(1, 1)
			article.Genres = tt.override

			opts := testOptions()
			opts.DefaultGenres = tt.defaults

			doc := Build([]models.Article{article}, opts)
			wellFormed(t, doc)

			if tt.want == "" {
				if strings.Contains(doc, "<news:genres>") {
					t.Errorf("genres should be omitted:\n%s", doc)
				}
				return
			}

			want := "<news:genres>" + tt.want + "</news:genres>"
			if !strings.Contains(doc, want) {
				t.Errorf("document missing %q:\n%s", want, doc)
			}
		})
	}
}

func TestBuildKeywords(t *testing.T) {

	tests := []struct {
		name  string
		terms []string
		emit  bool
		want  []string
		none  bool
	}{
		{
			"joined and deduped",
			[]string{"Aviation", "Travel", "Aviation", " Travel "},
			true,
			[]string{"Aviation", "Travel"},
			false,
		},
		{
			"capped at ten",
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"},
			true,
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
			false,
		},
		{"sole placeholder dropped", []string{"Uncategorized"}, true, nil, true},
		{"placeholder with company kept", []string{"Uncategorized", "Travel"}, true, []string{"Uncategorized", "Travel"}, false},
		{"emission disabled", []string{"Travel"}, false, nil, true},
		{"no terms", nil, true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := testArticle(1, 1)
			article.Terms = tt.terms

			opts := testOptions()
			opts.EmitKeywords = tt.emit

			doc := Build([]models.Article{article}, opts)
			wellFormed(t, doc)

			if tt.none {
				if strings.Contains(doc, "<news:keywords>") {
					t.Errorf("keywords should be omitted:\n%s", doc)
				}
				return
			}

			got := elementText(t, doc, "keywords")
			if diff := cmp.Diff(strings.Join(tt.want, ", "), got); diff != "" {
				t.Errorf("keywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildStockTickers(t *testing.T) {

	article := testArticle(1, 1)
	article.StockTickers = []string{
		"NASDAQ:AAPL", "NASDAQ:GOOG", "NYSE:GE", "NYSE:F", "NASDAQ:MSFT", "NYSE:BA",
	}

	doc := Build([]models.Article{article}, testOptions())
	wellFormed(t, doc)

	got := elementText(t, doc, "stock_tickers")
	want := "NASDAQ:AAPL, NASDAQ:GOOG, NYSE:GE, NYSE:F, NASDAQ:MSFT"
	if got != want {
		t.Errorf("got tickers %q, want %q (capped at five)", got, want)
	}
}

func TestBuildHostileContent(t *testing.T) {

	article := testArticle(1, 1)
	article.Title = `Breaking <b>news</b> & "quotes" ]]> even a CDATA terminator`
	article.Terms = []string{"R&D", "<markup>"}
	article.Loc = "https://example.com/post?a=1&b=2"

	opts := testOptions()
	opts.PublicationName = "Ampersands & Sons ]]>"

	doc := Build([]models.Article{article}, opts)
	wellFormed(t, doc)

	// The parsed title must round-trip the hostile input untouched
	if got := elementText(t, doc, "title"); got != article.Title {
		t.Errorf("title did not survive CDATA wrapping:\ngot:  %q\nwant: %q", got, article.Title)
	}

	if got := elementText(t, doc, "name"); got != opts.PublicationName {
		t.Errorf("publication name did not survive CDATA wrapping: %q", got)
	}

	if got := elementText(t, doc, "loc"); got != article.Loc {
		t.Errorf("loc did not survive escaping: %q", got)
	}
}

type ampEnricher struct{}

func (ampEnricher) Alternates(a models.Article) []Alternate {
	return []Alternate{
		{Rel: "amphtml", Href: a.Loc + "amp/"},
		{Rel: "alternate", Hreflang: "de", Href: strings.Replace(a.Loc, "/post", "/de/post", 1)},
	}
}

func TestBuildAlternates(t *testing.T) {

	opts := testOptions()
	opts.Enricher = ampEnricher{}

	doc := Build([]models.Article{testArticle(1, 1)}, opts)
	wellFormed(t, doc)

	for _, want := range []string{
		`<xhtml:link rel="amphtml" href="https://example.com/post-1/amp/"/>`,
		`<xhtml:link rel="alternate" hreflang="de" href="https://example.com/de/post-1/"/>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestValidGenres(t *testing.T) {

	got := ValidGenres([]string{"Blog", "Blog", "Junk", "PressRelease", ""})
	want := []string{"Blog", "PressRelease"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("valid genres mismatch (-want +got):\n%s", diff)
	}

	if got := ValidGenres(nil); got != nil {
		t.Errorf("got %v, want nil for empty input", got)
	}
}
