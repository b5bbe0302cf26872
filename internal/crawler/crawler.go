// Package crawler coordinates the crawl run: frontier scheduling,
// politeness, fetching, scoring, and hand-off to the analysis collaborator.
package crawler

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sitescout/internal/analyze"
	"github.com/sells-group/sitescout/internal/cache"
	"github.com/sells-group/sitescout/internal/config"
	"github.com/sells-group/sitescout/internal/extract"
	"github.com/sells-group/sitescout/internal/model"
	"github.com/sells-group/sitescout/internal/scorer"
)

// state tracks the orchestrator's progress through a run.
type state string

const (
	stateSeeding     state = "seeding"
	stateDiscovering state = "discovering"
	stateCrawling    state = "crawling"
	stateDraining    state = "draining"
	stateFinished    state = "finished"
)

// idlePollInterval is how often the dispatcher re-checks an empty frontier
// while fetches are still in flight.
const idlePollInterval = 50 * time.Millisecond

// Crawler runs one crawl session against a single seed domain.
type Crawler struct {
	cfg        config.CrawlConfig
	fetcher    *Fetcher
	politeness *Politeness
	discoverer *SitemapDiscoverer
	scorer     *scorer.Scorer
	matcher    *PathMatcher
	extractor  *extract.Chain
	analyzer   analyze.Analyzer

	state state
}

// New wires a Crawler from configuration. The analyzer may be nil, in which
// case qualifying pages are recorded without summaries.
func New(cfg config.CrawlConfig, store cache.Store, analyzer analyze.Analyzer, cacheTTL time.Duration) *Crawler {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
	delay := time.Duration(cfg.DelaySecs * float64(time.Second))
	politeness := NewPoliteness(client, cfg.UserAgent, delay)

	return &Crawler{
		cfg:        cfg,
		fetcher:    NewFetcher(client, store, politeness, cfg.UserAgent, cacheTTL),
		politeness: politeness,
		discoverer: NewSitemapDiscoverer(client, cfg.UserAgent),
		scorer:     scorer.New(),
		matcher:    NewPathMatcher(cfg.ExcludePaths),
		extractor:  extract.DefaultChain(),
		analyzer:   analyzer,
		state:      stateSeeding,
	}
}

// Run executes the crawl: seeding → discovering → crawling → draining →
// finished. Only configuration-time failures return an error; task-level
// failures are recorded in the session. Cancelling ctx is the cooperative
// stop signal: no new tasks are dispatched and in-flight fetches finish.
func (c *Crawler) Run(ctx context.Context, baseURL string) (*model.Session, error) {
	// seeding
	base, err := c.seed(baseURL)
	if err != nil {
		return nil, err
	}

	session := model.NewSession(base.String(), model.SessionConfig{
		MaxDepth:           c.cfg.MaxDepth,
		MaxPages:           c.cfg.MaxPages,
		Delay:              c.cfg.DelaySecs,
		ConcurrentRequests: c.cfg.ConcurrentRequests,
		ContentThreshold:   c.cfg.ContentThreshold,
	})

	frontier := NewFrontier(c.cfg.MaxPages, c.cfg.MaxDepth)

	// discovering
	c.advance(stateDiscovering, base.Host)
	c.discover(ctx, base, frontier)

	// crawling
	c.advance(stateCrawling, base.Host)
	c.crawl(ctx, base, frontier, session)

	// finished
	c.advance(stateFinished, base.Host)
	session.Finalize()

	total, successful, failed := session.Counts()
	zap.L().Info("crawl complete",
		zap.String("base_url", base.String()),
		zap.Int("total_pages", total),
		zap.Int("successful_pages", successful),
		zap.Int("failed_pages", failed),
	)
	return session, nil
}

// seed validates configuration and normalizes the base URL. Failures here
// are fatal; no crawl is attempted.
func (c *Crawler) seed(baseURL string) (*url.URL, error) {
	if c.cfg.MaxPages <= 0 {
		return nil, eris.Errorf("crawler: max_pages must be positive, got %d", c.cfg.MaxPages)
	}
	if c.cfg.MaxDepth < 0 {
		return nil, eris.Errorf("crawler: max_depth must be non-negative, got %d", c.cfg.MaxDepth)
	}
	if c.cfg.ConcurrentRequests <= 0 {
		return nil, eris.Errorf("crawler: concurrent_requests must be positive, got %d", c.cfg.ConcurrentRequests)
	}

	base, err := NormalizeURL(baseURL)
	if err != nil {
		return nil, err
	}
	return base, nil
}

// discover seeds the frontier from sitemaps, falling back to the seed URL
// alone. Sitemap entries are re-scored by URL heuristics; the higher of the
// declared priority and the heuristic score wins.
func (c *Crawler) discover(ctx context.Context, base *url.URL, frontier *Frontier) {
	declared := c.politeness.Sitemaps(ctx, base)
	tasks := c.discoverer.Discover(ctx, base, declared)

	admitted := 0
	for _, task := range tasks {
		if c.matcher.IsExcluded(task.URL) {
			continue
		}
		if urlScore := c.scorer.ScoreURL(task.URL); urlScore > task.Score {
			task = model.CrawlTask{URL: task.URL, Depth: task.Depth, Score: urlScore, Source: task.Source}
		}
		if frontier.Admit(task) {
			admitted++
		}
	}

	if admitted == 0 {
		frontier.Admit(model.CrawlTask{
			URL:    CleanURL(base),
			Depth:  0,
			Score:  1.0,
			Source: model.SourceSeed,
		})
	}

	zap.L().Info("discovery complete",
		zap.String("host", base.Host),
		zap.Int("frontier", frontier.Len()),
	)
}

// crawl dispatches frontier tasks to a bounded worker pool until the
// frontier is exhausted with no work in flight, then drains.
func (c *Crawler) crawl(ctx context.Context, base *url.URL, frontier *Frontier, session *model.Session) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ConcurrentRequests)

	var inflight atomic.Int64

	for {
		if gctx.Err() != nil {
			zap.L().Info("stop signal received, draining in-flight fetches")
			break
		}

		task, ok := frontier.Next()
		if !ok {
			if inflight.Load() == 0 {
				break
			}
			// In-flight pages may still feed new links into the frontier.
			select {
			case <-gctx.Done():
			case <-time.After(idlePollInterval):
			}
			continue
		}

		inflight.Add(1)
		g.Go(func() error {
			defer inflight.Add(-1)
			c.process(gctx, task, frontier, session)
			return nil
		})
	}

	// draining
	c.advance(stateDraining, base.Host)
	_ = g.Wait()
}

// process handles one task end to end: fetch, score, link feedback, and
// conditional hand-off to the analyzer. Failures never propagate.
func (c *Crawler) process(ctx context.Context, task model.CrawlTask, frontier *Frontier, session *model.Session) {
	outcome := c.fetcher.Fetch(ctx, task)

	if !outcome.Fetched() {
		session.Record(model.AnalysisResult{
			URL:            task.URL,
			ProcessingTime: outcome.Elapsed.Seconds(),
			Error:          string(outcome.Status),
		})
		return
	}

	page := c.scorePage(task, outcome)

	// Feed discovered links back into the frontier at depth+1 with their
	// URL-only scores. The frontier enforces every budget.
	for _, link := range page.Links {
		if c.matcher.IsExcluded(link) {
			continue
		}
		frontier.Admit(model.CrawlTask{
			URL:    link,
			Depth:  task.Depth + 1,
			Score:  c.scorer.ScoreURL(link),
			Source: model.SourceLink,
		})
	}

	if page.Score < c.cfg.ContentThreshold {
		zap.L().Debug("page below content threshold, skipping analysis",
			zap.String("url", page.URL),
			zap.Float64("score", page.Score),
		)
		session.Record(model.AnalysisResult{
			URL:            page.URL,
			Title:          page.Title,
			ContentScore:   page.Score,
			WordCount:      page.WordCount,
			ProcessingTime: outcome.Elapsed.Seconds(),
		})
		return
	}

	if c.analyzer == nil {
		session.Record(model.AnalysisResult{
			URL:            page.URL,
			Title:          page.Title,
			ContentScore:   page.Score,
			WordCount:      page.WordCount,
			ProcessingTime: outcome.Elapsed.Seconds(),
		})
		return
	}

	result, err := c.analyzer.Analyze(ctx, page)
	if err != nil {
		// Collaborator failure degrades to a stored page with the error
		// attached; the crawl continues.
		zap.L().Warn("analysis failed", zap.String("url", page.URL), zap.Error(err))
		session.Record(model.AnalysisResult{
			URL:            page.URL,
			Title:          page.Title,
			ContentScore:   page.Score,
			WordCount:      page.WordCount,
			ProcessingTime: outcome.Elapsed.Seconds(),
			Error:          err.Error(),
		})
		return
	}

	session.Record(*result)
}

// scorePage derives the immutable ScoredPage from a fetched outcome: text
// extraction, content re-scoring, and link extraction.
func (c *Crawler) scorePage(task model.CrawlTask, outcome model.FetchOutcome) model.ScoredPage {
	var (
		title string
		text  string
	)
	if content, err := c.extractor.Extract(outcome.Body); err == nil {
		title = content.Title
		text = content.Text
	}
	if title == "" {
		title = outcome.Title
	}

	score := task.Score
	wordCount := 0
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outcome.Body)); err == nil {
		score, wordCount = c.scorer.ScorePage(task.URL, doc)
	}

	base := baseFor(task.URL)
	var links []string
	if base != nil {
		links = ExtractLinks(base, outcome.Body)
	}

	return model.ScoredPage{
		URL:       task.URL,
		Title:     title,
		Score:     score,
		WordCount: wordCount,
		Text:      text,
		Links:     links,
	}
}

func baseFor(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return u
}

func (c *Crawler) advance(next state, host string) {
	zap.L().Debug("crawler state",
		zap.String("host", host),
		zap.String("from", string(c.state)),
		zap.String("to", string(next)),
	)
	c.state = next
}
