package model

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_RecordCounts(t *testing.T) {
	s := NewSession("https://acme.com/", SessionConfig{})

	s.Record(AnalysisResult{URL: "https://acme.com/a", Summary: "fine"})
	s.Record(AnalysisResult{URL: "https://acme.com/b"})
	s.Record(AnalysisResult{URL: "https://acme.com/c", Error: "http_error"})

	total, successful, failed := s.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, successful, "a result without an error is successful even with no summary")
	assert.Equal(t, 1, failed)
}

func TestSession_RecordAfterFinalizeIgnored(t *testing.T) {
	s := NewSession("https://acme.com/", SessionConfig{})
	s.Record(AnalysisResult{URL: "https://acme.com/a"})
	s.Finalize()
	s.Record(AnalysisResult{URL: "https://acme.com/late"})

	total, _, _ := s.Counts()
	assert.Equal(t, 1, total)
}

func TestSession_ConcurrentRecord(t *testing.T) {
	s := NewSession("https://acme.com/", SessionConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(AnalysisResult{URL: "https://acme.com/x"})
		}()
	}
	wg.Wait()

	total, successful, _ := s.Counts()
	assert.Equal(t, 50, total)
	assert.Equal(t, 50, successful)
}

func TestSession_ReportShape(t *testing.T) {
	cfg := SessionConfig{
		MaxDepth:           5,
		MaxPages:           1000,
		Delay:              1.0,
		ConcurrentRequests: 5,
		ContentThreshold:   0.4,
	}
	s := NewSession("https://acme.com/", cfg)
	s.Record(AnalysisResult{URL: "https://acme.com/a", Title: "A", Summary: "sum", KeyPoints: []string{"k"}})
	s.Record(AnalysisResult{URL: "https://acme.com/b", Error: "network_error"})
	s.Finalize()

	report := s.Report()
	info := report.ScrapingSession

	assert.Equal(t, "https://acme.com/", info.BaseURL)
	assert.Equal(t, 2, info.TotalPages)
	assert.Equal(t, 1, info.SuccessfulPages)
	assert.Equal(t, 1, info.FailedPages)
	assert.Equal(t, cfg, info.Configuration)
	assert.GreaterOrEqual(t, info.TotalTime, 0.0)

	_, err := time.Parse(time.RFC3339, info.StartTime)
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339, info.EndTime)
	assert.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "https://acme.com/a", report.Results[0].URL)
}

func TestSession_ReportJSONKeys(t *testing.T) {
	s := NewSession("https://acme.com/", SessionConfig{})
	s.Record(AnalysisResult{URL: "https://acme.com/a"})
	s.Finalize()

	data, err := json.Marshal(s.Report())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "scraping_session")
	assert.Contains(t, doc, "results")

	var info map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["scraping_session"], &info))
	for _, key := range []string{
		"start_time", "end_time", "base_url", "total_pages",
		"successful_pages", "failed_pages", "total_time", "configuration",
	} {
		assert.Contains(t, info, key)
	}

	var results []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["results"], &results))
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "url")
	assert.NotContains(t, results[0], "error", "error is omitted when empty")
}

func TestFetchOutcome_Fetched(t *testing.T) {
	assert.True(t, FetchOutcome{Status: StatusOK}.Fetched())
	assert.True(t, FetchOutcome{Status: StatusCacheHit}.Fetched())
	assert.False(t, FetchOutcome{Status: StatusHTTPError}.Fetched())
	assert.False(t, FetchOutcome{Status: StatusNetworkError}.Fetched())
	assert.False(t, FetchOutcome{Status: StatusRobotsDenied}.Fetched())
}
