package config

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Values the product deliberately does not expose as settings.
// Google News only looks at the last two days of content and caps
// the document size, so these are fixed rather than configurable.
const (
	WindowHours    = 48
	MaxURLs        = 1000
	CacheTTL       = 600 * time.Second
	RespectNoindex = true

	BuildTimeout = 10 * time.Second
	LockExpiry   = 2 * time.Minute
	PrewarmDelay = 15 * time.Second
	PingCooldown = 5 * time.Minute
	PingTimeout  = 10 * time.Second
)

// TermMap maps a taxonomy name to the term IDs excluded from the sitemap.
// The env format is "taxonomy:id|id,taxonomy:id", e.g. "category:7|12,post_tag:3".
type TermMap map[string][]int

type Config struct {
	// Running localy or not
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	Protocol string `env:"PROTOCOL" envDefault:"https"`

	// App settings
	AppName string `env:"APP_NAME"`
	Domain  string `env:"DOMAIN" envDefault:"localhost:5000"`

	// Sitemap settings
	SitemapEnabled      bool     `env:"SITEMAP_ENABLED" envDefault:"true"`
	PublicationName     string   `env:"PUBLICATION_NAME"`
	PostTypes           []string `env:"POST_TYPES" envDefault:"post"`
	PingEnabled         bool     `env:"PING_ENABLED" envDefault:"true"`
	EmitKeywords        bool     `env:"EMIT_KEYWORDS" envDefault:"true"`
	DefaultGenres       []string `env:"DEFAULT_GENRES"`
	DefaultImageLicense string   `env:"DEFAULT_IMAGE_LICENSE"`
	ExcludedTerms       TermMap  `env:"EXCLUDED_TERMS"`
	SiteLocale          string   `env:"SITE_LOCALE" envDefault:"en_US"`

	// Shared secret for the content-event webhook
	HookToken string `env:"HOOK_TOKEN"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisUsername string `env:"REDIS_USERNAME"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Postgres
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBDatabase string `env:"DB_DATABASE"`
	DBUsername string `env:"DB_USERNAME"`
	DBPassword string `env:"DB_PASSWORD"`
	DBMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"4"`

	// Local app host and port
	Host string `env:"HOST" envDefault:"localhost"`
	Port int    `env:"PORT" envDefault:"5000"`
}

// New creates new config object
func New() *Config {

	// Parse the config from the environment
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse the config; %v", err)
	}

	cfg.Sanitize()
	return &cfg
}

var validKey = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Sanitize drops unusable tokens and falls back to safe defaults,
// so the rest of the app never re-derives them ad hoc.
func (c *Config) Sanitize() {

	// Keep only well-formed post type keys
	var postTypes []string
	for _, pt := range c.PostTypes {
		pt = strings.ToLower(strings.TrimSpace(pt))
		if validKey.MatchString(pt) {
			postTypes = append(postTypes, pt)
		}
	}

	// Failsafe, an empty selection would mean an always empty sitemap
	if len(postTypes) == 0 {
		postTypes = []string{"post"}
	}
	c.PostTypes = postTypes

	// The image license must be an absolute URL or nothing
	if c.DefaultImageLicense != "" {
		u, err := url.Parse(c.DefaultImageLicense)
		if err != nil || !u.IsAbs() {
			log.Printf("Dropping invalid default image license URL: %q", c.DefaultImageLicense)
			c.DefaultImageLicense = ""
		}
	}
}

// Publication returns the publication name for the news tags,
// falling back to the site name when not explicitly set.
func (c *Config) Publication() string {
	if c.PublicationName != "" {
		return c.PublicationName
	}
	return c.AppName
}

// NewsLanguage derives the sitemap language code from the site locale,
// e.g. "en_US" becomes "en".
func (c *Config) NewsLanguage() string {
	locale := strings.TrimSpace(c.SiteLocale)
	if len(locale) < 2 {
		return "en"
	}
	return strings.ToLower(locale[:2])
}

// SiteHost returns the bare hostname, without the port
func (c *Config) SiteHost() string {
	host, _, _ := strings.Cut(c.Domain, ":")
	return host
}

// SiteURL returns the root URL of the site
func (c *Config) SiteURL() string {
	return fmt.Sprintf("%s://%s", c.Protocol, c.Domain)
}

// SitemapURL returns the public URL of the news sitemap
func (c *Config) SitemapURL() string {
	return c.SiteURL() + "/news-sitemap.xml"
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// It's called by the env library to decode the excluded terms map.
func (m *TermMap) UnmarshalText(text []byte) error {

	result := make(TermMap)
	for pair := range strings.SplitSeq(string(text), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		taxonomy, ids, found := strings.Cut(pair, ":")
		if !found {
			return fmt.Errorf("invalid excluded terms entry: %q", pair)
		}

		for _, raw := range strings.Split(ids, "|") {
			id, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("invalid term ID in %q; %w", pair, err)
			}
			result[taxonomy] = append(result[taxonomy], id)
		}
	}

	*m = result
	return nil
}

// TermIDs flattens the excluded terms map to a single ID list
func (m TermMap) TermIDs() []int {
	var ids []int
	for _, termIDs := range m {
		ids = append(ids, termIDs...)
	}
	return ids
}
