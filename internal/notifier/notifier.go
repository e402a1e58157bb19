// Package notifier pings the search engines after a sitemap rebuild,
// with a cooldown so repeated rebuilds do not hammer their endpoints.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/metrics"
	"github.com/vlatan/news-sitemap/internal/models"
)

// PingKey holds the timestamp and per-endpoint outcome of the last ping
const PingKey = "news:sitemap:ping"

// ErrThrottled is returned when the cooldown since the last ping
// has not elapsed and the caller did not force the ping.
var ErrThrottled = errors.New("search engine ping throttled")

// Store is the slice of the Redis service the notifier needs
type Store interface {
	HSet(ctx context.Context, key string, values ...any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Result is the outcome of pinging one search engine
type Result struct {
	Endpoint string `json:"endpoint"`
	OK       bool   `json:"ok"`
	Status   int    `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Notifier struct {
	store   Store
	config  *config.Config
	client  *http.Client
	metrics *metrics.Collector

	// Overridable in tests
	endpoints map[string]string
	now       func() time.Time
}

func New(store Store, cfg *config.Config, m *metrics.Collector) *Notifier {
	return &Notifier{
		store:   store,
		config:  cfg,
		client:  &http.Client{Timeout: config.PingTimeout},
		metrics: m,
		endpoints: map[string]string{
			"google": "https://www.google.com/ping?sitemap=%s",
			"bing":   "https://www.bing.com/ping?sitemap=%s",
		},
		now: time.Now,
	}
}

// Notify pings every configured search engine with the sitemap URL.
// Unless forced, pings within the cooldown window are skipped with
// ErrThrottled. Each ping is attempted even if another one fails.
func (n *Notifier) Notify(ctx context.Context, force bool) ([]Result, error) {

	if !n.config.PingEnabled {
		return nil, nil
	}

	if !force {
		record, err := n.LastRecord(ctx)
		if err == nil && !record.PingedAt.IsZero() &&
			n.now().Sub(record.PingedAt) < config.PingCooldown {
			return nil, ErrThrottled
		}
	}

	target := url.QueryEscape(n.config.SitemapURL())

	// Deterministic ping order
	names := make([]string, 0, len(n.endpoints))
	for name := range n.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	values := []any{"pinged_at", n.now().UTC().Format(time.RFC3339)}

	for _, name := range names {
		result := n.ping(ctx, fmt.Sprintf(n.endpoints[name], target))
		result.Endpoint = name
		results = append(results, result)
		values = append(values, name, outcome(result))

		label := "failed"
		if result.OK {
			label = "ok"
		}
		n.metrics.RecordPing(name, label)
	}

	if err := n.store.HSet(ctx, PingKey, values...); err != nil {
		return results, fmt.Errorf("unable to record the ping: %w", err)
	}

	return results, nil
}

// LastRecord fetches the stored outcome of the most recent ping.
// A zero record means no ping has happened yet.
func (n *Notifier) LastRecord(ctx context.Context) (models.PingRecord, error) {

	fields, err := n.store.HGetAll(ctx, PingKey)
	if err != nil {
		return models.PingRecord{}, fmt.Errorf("unable to fetch the ping record: %w", err)
	}

	var record models.PingRecord
	if len(fields) == 0 {
		return record, nil
	}

	record.Results = make(map[string]string)
	for field, value := range fields {
		if field == "pinged_at" {
			record.PingedAt, _ = time.Parse(time.RFC3339, value)
			continue
		}
		record.Results[field] = value
	}

	return record, nil
}

// ping issues one GET request and maps the response to a result
func (n *Notifier) ping(ctx context.Context, endpoint string) Result {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Error: err.Error()}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	result := Result{Status: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.OK = true
		return result
	}

	result.Error = fmt.Sprintf("unexpected status %s", resp.Status)
	return result
}

func outcome(r Result) string {
	if r.OK {
		return fmt.Sprintf("ok (%d)", r.Status)
	}
	if r.Status > 0 {
		return fmt.Sprintf("failed (%d)", r.Status)
	}
	return fmt.Sprintf("failed (%s)", r.Error)
}
