package model

import (
	"sync"
	"time"
)

// AnalysisResult is one processed page in the session report. Error is set
// when the fetch or the analysis collaborator failed; the rest of the fields
// carry whatever was recovered before the failure.
type AnalysisResult struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	ContentScore   float64  `json:"content_score"`
	WordCount      int      `json:"word_count"`
	ProcessingTime float64  `json:"processing_time"`
	Error          string   `json:"error,omitempty"`
}

// SessionConfig is the configuration snapshot embedded in the report.
type SessionConfig struct {
	MaxDepth           int     `json:"max_depth"`
	MaxPages           int     `json:"max_pages"`
	Delay              float64 `json:"delay"`
	ConcurrentRequests int     `json:"concurrent_requests"`
	ContentThreshold   float64 `json:"content_threshold"`
}

// Session accumulates the outcome of a crawl run. The orchestrator is the
// only writer; Record and the failure counters are safe for concurrent use
// by fetch workers. Finalize freezes the session.
type Session struct {
	mu sync.Mutex

	BaseURL   string
	StartTime time.Time
	EndTime   time.Time
	Config    SessionConfig

	results    []AnalysisResult
	successful int
	failed     int
	finalized  bool
}

// NewSession creates a session for a run starting now.
func NewSession(baseURL string, cfg SessionConfig) *Session {
	return &Session{
		BaseURL:   baseURL,
		StartTime: time.Now(),
		Config:    cfg,
	}
}

// Record appends a result, counting it as successful or failed depending on
// whether Error is set. No-op after Finalize.
func (s *Session) Record(r AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.results = append(s.results, r)
	if r.Error == "" {
		s.successful++
	} else {
		s.failed++
	}
}

// Counts returns total, successful and failed page counts.
func (s *Session) Counts() (total, successful, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results), s.successful, s.failed
}

// Finalize sets the end time and makes the session immutable.
func (s *Session) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.EndTime = time.Now()
	s.finalized = true
}

// SessionInfo is the "scraping_session" object of the report document.
type SessionInfo struct {
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	BaseURL         string        `json:"base_url"`
	TotalPages      int           `json:"total_pages"`
	SuccessfulPages int           `json:"successful_pages"`
	FailedPages     int           `json:"failed_pages"`
	TotalTime       float64       `json:"total_time"`
	Configuration   SessionConfig `json:"configuration"`
}

// Report is the persisted output document.
type Report struct {
	ScrapingSession SessionInfo      `json:"scraping_session"`
	Results         []AnalysisResult `json:"results"`
}

// Report renders the session into the persisted document shape. Call after
// Finalize; an unfinalized session reports a zero end time.
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.EndTime
	var totalTime float64
	var endStr string
	if !end.IsZero() {
		totalTime = end.Sub(s.StartTime).Seconds()
		endStr = end.Format(time.RFC3339)
	}

	results := make([]AnalysisResult, len(s.results))
	copy(results, s.results)

	return Report{
		ScrapingSession: SessionInfo{
			StartTime:       s.StartTime.Format(time.RFC3339),
			EndTime:         endStr,
			BaseURL:         s.BaseURL,
			TotalPages:      len(s.results),
			SuccessfulPages: s.successful,
			FailedPages:     s.failed,
			TotalTime:       totalTime,
			Configuration:   s.Config,
		},
		Results: results,
	}
}
