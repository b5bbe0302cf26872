package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Politeness enforces robots.txt rules and a minimum inter-request delay per
// host. robots.txt is fetched once per host and cached for the run. The
// delay is enforced with a per-host token bucket: Wait reserves the next
// slot before the request is issued, so overlapping in-flight requests to
// the same host still serialize at the delay boundary.
type Politeness struct {
	client    *http.Client
	userAgent string
	delay     time.Duration

	mu       sync.Mutex
	robots   map[string]*robotstxt.RobotsData // nil value = unreachable/malformed, permissive
	limiters map[string]*rate.Limiter
}

// NewPoliteness creates a Politeness policy. A nil client gets a default
// with a 10s timeout.
func NewPoliteness(client *http.Client, userAgent string, delay time.Duration) *Politeness {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Politeness{
		client:    client,
		userAgent: userAgent,
		delay:     delay,
		robots:    make(map[string]*robotstxt.RobotsData),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Allowed reports whether the URL may be fetched under the host's robots.txt
// rules. If robots.txt is unreachable or malformed the policy is permissive.
func (p *Politeness) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return false
	}

	data := p.robotsFor(ctx, u)
	if data == nil {
		return true
	}

	group := data.FindGroup(p.userAgent)
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

// Wait blocks until the host's minimum inter-request interval allows the
// next fetch, reserving that slot immediately.
func (p *Politeness) Wait(ctx context.Context, host string) error {
	if p.delay <= 0 {
		return nil
	}
	return p.limiterFor(host).Wait(ctx)
}

// Sitemaps returns the sitemap locations declared in the host's robots.txt.
func (p *Politeness) Sitemaps(ctx context.Context, u *url.URL) []string {
	data := p.robotsFor(ctx, u)
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

func (p *Politeness) limiterFor(host string) *rate.Limiter {
	host = strings.ToLower(host)

	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, ok := p.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.delay), 1)
		p.limiters[host] = limiter
	}
	return limiter
}

// robotsFor returns the cached robots data for the URL's host, fetching it
// on first use. A nil return means no usable robots.txt.
func (p *Politeness) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(u.Host)

	p.mu.Lock()
	data, cached := p.robots[host]
	p.mu.Unlock()
	if cached {
		return data
	}

	data = p.fetchRobots(ctx, u.Scheme+"://"+u.Host+"/robots.txt")

	p.mu.Lock()
	// Another worker may have raced the fetch; first write wins.
	if existing, cached := p.robots[host]; cached {
		data = existing
	} else {
		p.robots[host] = data
	}
	p.mu.Unlock()

	return data
}

func (p *Politeness) fetchRobots(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		zap.L().Warn("politeness: robots.txt unreachable, degrading to permissive",
			zap.String("url", robotsURL),
			zap.Error(err),
		)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		zap.L().Debug("politeness: no robots.txt",
			zap.String("url", robotsURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		zap.L().Warn("politeness: malformed robots.txt, degrading to permissive",
			zap.String("url", robotsURL),
			zap.Error(err),
		)
		return nil
	}

	zap.L().Debug("politeness: robots.txt parsed", zap.String("url", robotsURL))
	return data
}
