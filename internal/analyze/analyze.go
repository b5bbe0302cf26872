// Package analyze hands scored pages to the LLM collaborator for
// summarization.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescout/internal/config"
	"github.com/sells-group/sitescout/internal/model"
	"github.com/sells-group/sitescout/pkg/anthropic"
)

// maxTextChars caps the page text sent to the model.
const maxTextChars = 4000

const systemPrompt = "You are a research analyst summarizing web pages. Return valid JSON only."

const analyzePrompt = `Summarize this web page and extract its key points.

Page URL: %s
Page title: %s
Page content:
%s

Return a valid JSON object:
{"summary": "<2-3 sentence executive summary>", "key_points": ["<point>", ...]}`

// Analyzer produces an AnalysisResult for a scored page.
type Analyzer interface {
	Analyze(ctx context.Context, page model.ScoredPage) (*model.AnalysisResult, error)
}

// ClaudeAnalyzer implements Analyzer via the Anthropic messages API. A
// collaborator failure is returned as an error; the caller degrades it to a
// result with Error set rather than aborting the crawl.
type ClaudeAnalyzer struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewClaudeAnalyzer creates a ClaudeAnalyzer.
func NewClaudeAnalyzer(client anthropic.Client, cfg config.AnthropicConfig) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{client: client, cfg: cfg}
}

// analysisPayload is the JSON shape the model is asked to return.
type analysisPayload struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Analyze sends the page text to the model and parses the response.
func (a *ClaudeAnalyzer) Analyze(ctx context.Context, page model.ScoredPage) (*model.AnalysisResult, error) {
	start := time.Now()

	text := page.Text
	if len(text) > maxTextChars {
		text = text[:maxTextChars] + "..."
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(analyzePrompt, page.URL, page.Title, text)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analyze: %s", page.URL)
	}

	payload, err := parsePayload(resp.Text())
	if err != nil {
		return nil, eris.Wrapf(err, "analyze: parse response for %s", page.URL)
	}

	zap.L().Debug("analyze: page summarized",
		zap.String("url", page.URL),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	return &model.AnalysisResult{
		URL:            page.URL,
		Title:          page.Title,
		Summary:        payload.Summary,
		KeyPoints:      payload.KeyPoints,
		ContentScore:   page.Score,
		WordCount:      page.WordCount,
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// parsePayload extracts the JSON object from the model response, tolerating
// surrounding prose or markdown fences.
func parsePayload(text string) (*analysisPayload, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, eris.New("no JSON object in response")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "unmarshal analysis payload")
	}
	return &payload, nil
}
