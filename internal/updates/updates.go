// Package updates checks the project's GitHub releases for a newer version.
package updates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/tidwall/gjson"
	"github.com/vasilisp/autopost/internal/config"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/util"
	"golang.org/x/mod/semver"
)

const (
	DefaultCacheTTL = 12 * time.Hour
	requestTimeout  = 10 * time.Second
	latestKey       = "latest"
)

type Release struct {
	Version     string
	Tag         string
	URL         string
	DownloadURL string
	PublishedAt string
}

type cached struct {
	release *Release
	expires time.Time
}

// Checker fetches the latest release and keeps a successful answer for the
// configured TTL. Failures are not cached.
type Checker struct {
	config config.Store
	client *http.Client
	log    *logger.Logger

	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

func NewChecker(store config.Store, client *http.Client, log *logger.Logger) *Checker {
	util.Assert(store != nil, "NewChecker nil config store")

	if client == nil {
		client = http.DefaultClient
	}
	return &Checker{
		config: store,
		client: client,
		log:    logger.OrNop(log).With("service", "Checker"),
		cache:  lru.New(1),
		now:    time.Now,
	}
}

func (c *Checker) ttl() time.Duration {
	if d := c.config.GetDuration(config.KeyUpdatesCacheTTL); d > 0 {
		return d
	}
	return DefaultCacheTTL
}

func (c *Checker) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}

// Latest returns the newest published release, or nil when none could be
// determined.
func (c *Checker) Latest(ctx context.Context) *Release {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(latestKey); ok {
		entry := v.(cached)
		if c.now().Before(entry.expires) {
			return entry.release
		}
		c.cache.Remove(latestKey)
	}

	release, err := c.fetch(ctx)
	if err != nil {
		c.log.Debug("release check failed", "error", err)
		return nil
	}

	c.cache.Add(latestKey, cached{release: release, expires: c.now().Add(c.ttl())})
	return release
}

// Check returns the latest release when it is newer than installed.
func (c *Checker) Check(ctx context.Context, installed string) (*Release, bool) {
	release := c.Latest(ctx)
	if release == nil {
		return nil, false
	}
	if !Newer(release.Version, installed) {
		return release, false
	}
	return release, true
}

// Newer reports whether version is semantically greater than installed.
// Either side may carry a leading "v". Unparseable versions are never newer.
func Newer(version, installed string) bool {
	v, i := canonical(version), canonical(installed)
	if !semver.IsValid(v) || !semver.IsValid(i) {
		return false
	}
	return semver.Compare(v, i) > 0
}

func canonical(version string) string {
	return "v" + strings.TrimPrefix(strings.TrimSpace(version), "v")
}

func (c *Checker) fetch(ctx context.Context) (*Release, error) {
	apiBase := strings.TrimRight(c.config.GetString(config.KeyUpdatesAPIBase), "/")
	owner := c.config.GetString(config.KeyUpdatesOwner)
	repo := c.config.GetString(config.KeyUpdatesRepo)
	slug := c.config.GetString(config.KeyUpdatesSlug)
	if apiBase == "" || owner == "" || repo == "" {
		return nil, fmt.Errorf("release repository not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", fmt.Sprintf("autopost/%s; %s",
		c.config.GetString(config.KeyUpdatesInstalled), c.config.GetString(config.KeySiteURL)))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("invalid release payload")
	}

	tag := gjson.GetBytes(body, "tag_name").String()
	version := strings.TrimLeft(tag, "v")
	if version == "" {
		return nil, fmt.Errorf("release has no tag")
	}

	return &Release{
		Version:     version,
		Tag:         tag,
		URL:         gjson.GetBytes(body, "html_url").String(),
		DownloadURL: fmt.Sprintf("https://github.com/%s/%s/releases/download/%s/%s.zip", owner, repo, tag, slug),
		PublishedAt: gjson.GetBytes(body, "published_at").String(),
	}, nil
}
