// Package coordinator decides cache hit/miss/stale for the sitemap,
// runs builds behind a single-flight lock and is the sole writer of
// the cached document and its build metadata.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/drivers/rdb"
	"github.com/vlatan/news-sitemap/internal/metrics"
	"github.com/vlatan/news-sitemap/internal/models"
	"github.com/vlatan/news-sitemap/internal/sitemap"
)

const (
	CacheKey = "news:sitemap:xml"
	MetaKey  = "news:sitemap:meta"
	LockKey  = "news:sitemap:lock"
)

// ErrBuildInProgress signals that another rebuild holds the lock.
// Callers treat it as a no-op skip, not a failure.
var ErrBuildInProgress = errors.New("a sitemap build is already in progress")

// Store is the shared state the coordinator needs from Redis
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	HSet(ctx context.Context, key string, values ...any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	TryLock(ctx context.Context, key, value string, expiry time.Duration) (bool, error)
	Unlock(ctx context.Context, key, value string) error
}

// Source supplies the candidate articles
type Source interface {
	RecentArticles(ctx context.Context) ([]models.Article, error)
}

type Coordinator struct {
	store   Store
	source  Source
	opts    sitemap.Options
	metrics *metrics.Collector

	// Unique per process so a worker can only release its own lock
	holder string
}

func New(store Store, source Source, opts sitemap.Options, metrics *metrics.Collector) *Coordinator {
	return &Coordinator{
		store:   store,
		source:  source,
		opts:    opts,
		metrics: metrics,
		holder:  uuid.NewString(),
	}
}

// GetOrBuild serves the read path. A cache hit returns immediately,
// a miss builds synchronously and caches the result. Internal failures
// never surface to the reader, the worst case is the empty document.
func (c *Coordinator) GetOrBuild(ctx context.Context) (string, error) {

	payload, err := c.store.Get(ctx, CacheKey)
	if err == nil {
		if validPayload(payload) {
			c.metrics.RecordCacheHit()
			return payload, nil
		}

		// Self-heal a corrupt entry
		log.Printf("Corrupt sitemap cache entry, purging")
		if err := c.store.Delete(ctx, CacheKey); err != nil {
			log.Printf("Error purging corrupt sitemap cache; %v", err)
		}
		return sitemap.EmptyDocument, nil
	}

	if !errors.Is(err, rdb.ErrNotFound) {
		log.Printf("Error reading sitemap cache; %v", err)
	}

	c.metrics.RecordCacheMiss()

	start := time.Now()
	doc, _, err := c.build(ctx)
	if err != nil {
		log.Printf("Sitemap build failed on the read path; %v", err)
		c.metrics.RecordBuildFailure()

		// A concurrent rebuild may have landed a good entry meanwhile
		if payload, err := c.store.Get(ctx, CacheKey); err == nil && validPayload(payload) {
			return payload, nil
		}

		doc = sitemap.EmptyDocument
	} else {
		c.metrics.RecordBuild(time.Since(start))
	}

	// Cache even the fallback so a persistent failure doesn't turn
	// every request into a synchronous rebuild attempt.
	if err := c.store.Set(ctx, CacheKey, doc, config.CacheTTL); err != nil {
		log.Printf("Error caching the sitemap; %v", err)
	}

	return doc, nil
}

// Rebuild runs the background path: at most one build in flight,
// everyone else skips. On success the cache entry is replaced
// wholesale and the build metadata is recorded.
func (c *Coordinator) Rebuild(ctx context.Context) (models.BuildMeta, error) {

	ok, err := c.store.TryLock(ctx, LockKey, c.holder, config.LockExpiry)
	if err != nil {
		return models.BuildMeta{}, fmt.Errorf("could not acquire the build lock; %w", err)
	}
	if !ok {
		return models.BuildMeta{}, ErrBuildInProgress
	}

	// Release on every path, including build errors and panics
	defer func() {
		if err := c.store.Unlock(context.WithoutCancel(ctx), LockKey, c.holder); err != nil {
			log.Printf("Error releasing the build lock; %v", err)
		}
	}()

	start := time.Now()
	doc, count, err := c.build(ctx)
	if err != nil {
		c.metrics.RecordBuildFailure()

		// Don't leave possibly stale content behind a failed build
		if serr := c.store.Set(ctx, CacheKey, sitemap.EmptyDocument, config.CacheTTL); serr != nil {
			log.Printf("Error caching the fallback document; %v", serr)
		}

		return models.BuildMeta{}, err
	}

	took := time.Since(start)
	c.metrics.RecordBuild(took)

	if err := c.store.Set(ctx, CacheKey, doc, config.CacheTTL); err != nil {
		return models.BuildMeta{}, fmt.Errorf("could not store the sitemap; %w", err)
	}

	meta := models.BuildMeta{
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Count:       count,
		TookMS:      took.Milliseconds(),
		ETag:        ETag(doc),
	}

	err = c.store.HSet(ctx, MetaKey,
		"generated_at", meta.GeneratedAt.Format(time.RFC3339),
		"count", strconv.Itoa(meta.Count),
		"took_ms", strconv.FormatInt(meta.TookMS, 10),
		"etag", meta.ETag,
	)
	if err != nil {
		log.Printf("Error storing the build metadata; %v", err)
	}

	return meta, nil
}

// BuildOnly builds and returns the document without touching the cache
func (c *Coordinator) BuildOnly(ctx context.Context) (string, error) {
	doc, _, err := c.build(ctx)
	return doc, err
}

// Purge deletes the cached document. Cheap and unconditional,
// the next reader or the scheduler rebuilds it.
func (c *Coordinator) Purge(ctx context.Context) error {
	return c.store.Delete(ctx, CacheKey)
}

// Meta returns the metadata of the last recorded build.
// A zero value means no build has been recorded yet.
func (c *Coordinator) Meta(ctx context.Context) (models.BuildMeta, error) {

	fields, err := c.store.HGetAll(ctx, MetaKey)
	if err != nil || len(fields) == 0 {
		return models.BuildMeta{}, err
	}

	var meta models.BuildMeta
	meta.GeneratedAt, _ = time.Parse(time.RFC3339, fields["generated_at"])
	meta.Count, _ = strconv.Atoi(fields["count"])
	meta.TookMS, _ = strconv.ParseInt(fields["took_ms"], 10, 64)
	meta.ETag = fields["etag"]

	return meta, nil
}

// build fetches the articles and renders the document,
// bounded by the build timeout. A panic inside the pipeline is
// converted to an error so it can never corrupt the cache.
func (c *Coordinator) build(ctx context.Context) (doc string, count int, err error) {

	ctx, cancel := context.WithTimeout(ctx, config.BuildTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sitemap build panicked: %v", r)
		}
	}()

	articles, err := c.source.RecentArticles(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("could not fetch recent articles; %w", err)
	}

	doc = sitemap.Build(articles, c.opts)
	return doc, strings.Count(doc, "<url>"), nil
}

// ETag derives the strong entity tag from the document content
func ETag(doc string) string {
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:])
}

// validPayload guards against a corrupt or foreign cache value
func validPayload(payload string) bool {
	return strings.HasPrefix(payload, "<?xml")
}
