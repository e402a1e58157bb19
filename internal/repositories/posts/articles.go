package posts

import (
	"context"
	"fmt"
	"time"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/models"
)

// Recent published posts of the configured types, newest first.
// Posts carrying an excluded taxonomy term are filtered out here,
// before any hydration work.
const recentArticlesQuery = `
	SELECT
		p.id, p.url, p.title, p.post_type, p.status,
		p.published_at, p.updated_at,
		p.noindex, p.exclude_from_sitemap, p.canonical_url,
		p.genres, p.stock_tickers
	FROM post AS p
	WHERE p.status = 'publish'
		AND p.post_type = ANY($1)
		AND p.published_at >= $2
		AND NOT EXISTS (
			SELECT 1 FROM post_term AS pt
			WHERE pt.post_id = p.id AND pt.term_id = ANY($3)
		)
	ORDER BY p.published_at DESC, p.id DESC
	LIMIT $4
`

const articleImagesQuery = `
	SELECT post_id, url, width, title, caption, license
	FROM post_image
	WHERE post_id = ANY($1)
	ORDER BY post_id, position, id
`

const articleTermsQuery = `
	SELECT pt.post_id, t.name
	FROM post_term AS pt
	JOIN term AS t ON t.id = pt.term_id
	WHERE pt.post_id = ANY($1)
	ORDER BY pt.post_id, t.name
`

// RecentArticles returns hydrated article views for every published
// post inside the recency window, in descending publish-date order.
func (r *Repository) RecentArticles(ctx context.Context) ([]models.Article, error) {

	after := time.Now().UTC().Add(-config.WindowHours * time.Hour)
	excluded := r.config.ExcludedTerms.TermIDs()
	if excluded == nil {
		excluded = []int{}
	}

	rows, err := r.db.Query(
		ctx, recentArticlesQuery,
		r.config.PostTypes, after, excluded, config.MaxURLs,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query recent posts; %w", err)
	}

	// Close rows on exit
	defer rows.Close()

	// Iterate over the rows
	var articles []models.Article
	var ids []int
	for rows.Next() {
		var a models.Article
		err = rows.Scan(
			&a.ID, &a.Loc, &a.Title, &a.PostType, &a.Status,
			&a.Published, &a.Modified,
			&a.Noindex, &a.Exclude, &a.CanonicalURL,
			&a.Genres, &a.StockTickers,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan post row; %w", err)
		}

		a.Published = a.Published.UTC()
		a.Modified = a.Modified.UTC()
		articles = append(articles, a)
		ids = append(ids, a.ID)
	}

	// If error during iteration
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(articles) == 0 {
		return nil, nil
	}

	images, err := r.articleImages(ctx, ids)
	if err != nil {
		return nil, err
	}

	terms, err := r.articleTerms(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range articles {
		articles[i].Images = images[articles[i].ID]
		articles[i].Terms = terms[articles[i].ID]
	}

	return articles, nil
}

// articleImages fetches the images of the given posts, keyed by post ID
func (r *Repository) articleImages(ctx context.Context, ids []int) (map[int][]models.ArticleImage, error) {

	rows, err := r.db.Query(ctx, articleImagesQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("could not query post images; %w", err)
	}
	defer rows.Close()

	images := make(map[int][]models.ArticleImage)
	for rows.Next() {
		var postID int
		var img models.ArticleImage
		err = rows.Scan(&postID, &img.URL, &img.Width, &img.Title, &img.Caption, &img.License)
		if err != nil {
			return nil, fmt.Errorf("could not scan image row; %w", err)
		}
		images[postID] = append(images[postID], img)
	}

	return images, rows.Err()
}

// articleTerms fetches the taxonomy term names of the given posts,
// keyed by post ID.
func (r *Repository) articleTerms(ctx context.Context, ids []int) (map[int][]string, error) {

	rows, err := r.db.Query(ctx, articleTermsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("could not query post terms; %w", err)
	}
	defer rows.Close()

	terms := make(map[int][]string)
	for rows.Next() {
		var postID int
		var name string
		if err = rows.Scan(&postID, &name); err != nil {
			return nil, fmt.Errorf("could not scan term row; %w", err)
		}
		terms[postID] = append(terms[postID], name)
	}

	return terms, rows.Err()
}
