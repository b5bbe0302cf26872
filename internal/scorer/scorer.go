// Package scorer assigns heuristic relevance scores to URLs and pages.
package scorer

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// highValuePatterns mark URL paths likely to carry substantive content.
var highValuePatterns = compileAll(
	`/how-it-works/?`, `/pricing/?`, `/use-cases/?`, `/help/?`,
	`/blog/?`, `/articles/?`, `/docs/?`, `/features/?`,
	`/solutions/?`, `/guides/?`, `/tutorials/?`, `/documentation/?`,
	`/news/?`, `/post/?`, `/about/?`, `/product/?`, `/services/?`,
)

// lowValuePatterns mark navigation, legal, and static-asset paths.
var lowValuePatterns = compileAll(
	`/contact/?`, `/privacy/?`, `/terms/?`, `/login/?`,
	`/cart/?`, `/checkout/?`, `/search/?`, `/sitemap/?`,
	`/robots\.txt`, `/favicon\.ico`, `\.(css|js|png|jpg|jpeg|gif|svg|pdf)$`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// urlWeight and contentWeight blend the two signals when page content is
// available. URL heuristics dominate; content cannot entirely override them.
const (
	urlWeight     = 0.6
	contentWeight = 0.4
)

// Scorer scores URLs and fetched pages in [0,1].
type Scorer struct{}

// New creates a Scorer.
func New() *Scorer {
	return &Scorer{}
}

// ScoreURL scores a URL from its path pattern alone. Used pre-fetch to
// prioritize the frontier.
func (s *Scorer) ScoreURL(rawURL string) float64 {
	score := 0.5
	lower := strings.ToLower(rawURL)

	for _, re := range highValuePatterns {
		if re.MatchString(lower) {
			score += 0.3
			break
		}
	}
	for _, re := range lowValuePatterns {
		if re.MatchString(lower) {
			score -= 0.4
			break
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if u.Path == "" || u.Path == "/" {
			score += 0.2
		}
	}

	return clamp(score)
}

// ScorePage blends the URL score with page-content signals and returns the
// final score along with the page's word count. Used post-fetch to gate the
// analysis hand-off; a page may be promoted or demoted relative to its
// URL-only score.
func (s *Scorer) ScorePage(rawURL string, doc *goquery.Document) (float64, int) {
	urlScore := s.ScoreURL(rawURL)
	if doc == nil {
		return urlScore, 0
	}

	contentScore, wordCount := scoreContent(doc)
	return clamp(urlWeight*urlScore + contentWeight*contentScore), wordCount
}

// mainContentSelectors locate the primary content area, tried in order.
var mainContentSelectors = []string{
	"main", "article", `[role="main"]`, ".main-content", ".content",
	".post-content", ".entry-content", ".article-content", "#content", "#main",
}

func scoreContent(doc *goquery.Document) (float64, int) {
	score := 0.5

	content := mainContent(doc)
	text := strings.TrimSpace(content.Text())
	wordCount := len(strings.Fields(text))

	switch {
	case wordCount > 1000:
		score += 0.3
	case wordCount > 500:
		score += 0.2
	case wordCount > 100:
		score += 0.1
	default:
		score -= 0.2
	}

	headings := content.Find("h1, h2, h3").Length()
	if headings > 3 {
		score += 0.2
	} else if headings > 1 {
		score += 0.1
	}

	if doc.Find("article").Length() > 0 {
		score += 0.2
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		score += 0.1
	}

	return clamp(score), wordCount
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainContentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return doc.Selection
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
