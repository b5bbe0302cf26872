package model

import "time"

// TaskSource identifies how a crawl task was discovered.
type TaskSource string

const (
	SourceSeed    TaskSource = "seed"
	SourceSitemap TaskSource = "sitemap"
	SourceLink    TaskSource = "link"
)

// CrawlTask is a discovered, not-yet-fetched URL. Tasks are immutable after
// creation; re-scoring produces a new task rather than mutating in place.
type CrawlTask struct {
	URL    string
	Depth  int
	Score  float64
	Source TaskSource
}

// FetchStatus classifies the outcome of a single fetch attempt chain.
type FetchStatus string

const (
	StatusOK           FetchStatus = "ok"
	StatusHTTPError    FetchStatus = "http_error"
	StatusNetworkError FetchStatus = "network_error"
	StatusRobotsDenied FetchStatus = "robots_denied"
	StatusCacheHit     FetchStatus = "cache_hit"
)

// FetchOutcome is produced exactly once per task by the fetcher. The
// orchestrator owns it thereafter.
type FetchOutcome struct {
	URL        string
	Status     FetchStatus
	StatusCode int
	Body       []byte
	Title      string
	FetchedAt  time.Time
	Elapsed    time.Duration
	Retries    int
}

// Fetched reports whether the outcome carries usable page content, either
// from the network or from the cache.
func (o FetchOutcome) Fetched() bool {
	return o.Status == StatusOK || o.Status == StatusCacheHit
}

// ScoredPage is a successfully fetched page after content scoring and link
// extraction. Immutable once produced.
type ScoredPage struct {
	URL       string
	Title     string
	Score     float64
	WordCount int
	Text      string
	Links     []string
}
