package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sitescout/internal/model"
)

// wellKnownSitemapPaths are tried when robots.txt declares no sitemap.
var wellKnownSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps.xml",
	"/sitemap/sitemap.xml",
}

// maxSitemapNesting guards against cyclic or pathological sitemap indexes.
const maxSitemapNesting = 3

// maxSitemapBytes caps a single sitemap document.
const maxSitemapBytes = 2 * 1024 * 1024

// SitemapDiscoverer seeds the frontier from robots-declared and well-known
// sitemap locations before the crawler falls back to link-following.
type SitemapDiscoverer struct {
	client    *http.Client
	userAgent string
}

// NewSitemapDiscoverer creates a SitemapDiscoverer.
func NewSitemapDiscoverer(client *http.Client, userAgent string) *SitemapDiscoverer {
	return &SitemapDiscoverer{client: client, userAgent: userAgent}
}

// Discover tries each sitemap source in order until one yields URLs:
// robots-declared locations first, then the well-known paths. Returns nil
// when no sitemap is found, in which case the caller seeds from the base
// URL alone. Entries from a top-level urlset get depth 0; entries reached
// through a sitemap index get depth 1.
func (d *SitemapDiscoverer) Discover(ctx context.Context, base *url.URL, declared []string) []model.CrawlTask {
	candidates := make([]string, 0, len(declared)+len(wellKnownSitemapPaths))
	candidates = append(candidates, declared...)
	for _, p := range wellKnownSitemapPaths {
		candidates = append(candidates, base.Scheme+"://"+base.Host+p)
	}

	for _, sitemapURL := range candidates {
		tasks := d.parse(ctx, sitemapURL, base, 0)
		if len(tasks) > 0 {
			zap.L().Info("sitemap: seeded urls",
				zap.String("sitemap", sitemapURL),
				zap.Int("count", len(tasks)),
			)
			return tasks
		}
	}

	zap.L().Info("sitemap: none found, falling back to link discovery",
		zap.String("host", base.Host),
	)
	return nil
}

// sitemapDoc covers both <urlset> and <sitemapindex> documents; only one of
// the two slices is populated for a given file.
type sitemapDoc struct {
	XMLName  xml.Name       `xml:""`
	URLs     []sitemapEntry `xml:"url"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc      string `xml:"loc"`
	Priority string `xml:"priority"`
}

func (d *SitemapDiscoverer) parse(ctx context.Context, sitemapURL string, base *url.URL, nesting int) []model.CrawlTask {
	if nesting > maxSitemapNesting {
		zap.L().Warn("sitemap: nesting limit reached", zap.String("url", sitemapURL))
		return nil
	}

	body, ok := d.fetch(ctx, sitemapURL)
	if !ok {
		return nil
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		zap.L().Debug("sitemap: unparseable document",
			zap.String("url", sitemapURL),
			zap.Error(err),
		)
		return nil
	}

	// Sitemap index: flatten nested sitemaps recursively.
	if len(doc.Sitemaps) > 0 {
		var tasks []model.CrawlTask
		for _, sm := range doc.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			tasks = append(tasks, d.parse(ctx, loc, base, nesting+1)...)
		}
		return tasks
	}

	depth := 0
	if nesting > 0 {
		depth = 1
	}

	var tasks []model.CrawlTask
	for _, entry := range doc.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		u, err := url.Parse(loc)
		if err != nil || u.Host != base.Host {
			continue
		}

		score := 0.5
		if p, err := strconv.ParseFloat(strings.TrimSpace(entry.Priority), 64); err == nil && p >= 0 && p <= 1 {
			score = p
		}

		tasks = append(tasks, model.CrawlTask{
			URL:    CleanURL(u),
			Depth:  depth,
			Score:  score,
			Source: model.SourceSitemap,
		})
	}
	return tasks
}

func (d *SitemapDiscoverer) fetch(ctx context.Context, rawURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, false
	}
	return body, true
}
