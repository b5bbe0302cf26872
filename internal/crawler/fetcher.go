package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescout/internal/cache"
	"github.com/sells-group/sitescout/internal/model"
	"github.com/sells-group/sitescout/internal/resilience"
)

// maxBodyBytes caps a fetched page body.
const maxBodyBytes = 512 * 1024

// httpStatusError marks a permanent HTTP failure (4xx other than 408/429).
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.code)
}

// Fetcher retrieves single pages: cache first, then the network under the
// politeness policy, with retry and backoff on transient failures. It has
// no page-count awareness; budgets are the frontier's concern.
type Fetcher struct {
	client     *http.Client
	cache      cache.Store
	politeness *Politeness
	userAgent  string
	ttl        time.Duration
	retryCfg   resilience.RetryConfig
}

// NewFetcher creates a Fetcher. The client's timeout is the per-request
// timeout; there is no run-level deadline.
func NewFetcher(client *http.Client, store cache.Store, politeness *Politeness, userAgent string, ttl time.Duration) *Fetcher {
	return &Fetcher{
		client:     client,
		cache:      store,
		politeness: politeness,
		userAgent:  userAgent,
		ttl:        ttl,
		retryCfg:   resilience.DefaultRetryConfig(),
	}
}

// Fetch produces exactly one FetchOutcome for the task. Task-level failures
// are reported in the outcome, never returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, task model.CrawlTask) model.FetchOutcome {
	start := time.Now()

	outcome := model.FetchOutcome{
		URL:       task.URL,
		FetchedAt: start,
	}

	// Cache is consulted before any network work.
	if entry, ok, err := f.cache.Get(ctx, task.URL); err == nil && ok {
		outcome.Status = model.StatusCacheHit
		outcome.StatusCode = entry.StatusCode
		outcome.Body = entry.Body
		outcome.Title = entry.Title
		outcome.Elapsed = time.Since(start)
		zap.L().Debug("fetch: cache hit", zap.String("url", task.URL))
		return outcome
	} else if err != nil {
		zap.L().Warn("fetch: cache read failed", zap.String("url", task.URL), zap.Error(err))
	}

	if !f.politeness.Allowed(ctx, task.URL) {
		outcome.Status = model.StatusRobotsDenied
		outcome.Elapsed = time.Since(start)
		zap.L().Info("fetch: denied by robots.txt", zap.String("url", task.URL))
		return outcome
	}

	u, err := url.Parse(task.URL)
	if err != nil {
		outcome.Status = model.StatusNetworkError
		outcome.Elapsed = time.Since(start)
		return outcome
	}

	cfg := f.retryCfg
	cfg.OnRetry = resilience.RetryLogger(task.URL)

	result, retries, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (fetchResult, error) {
		// The politeness slot is reserved before each attempt is issued.
		if err := f.politeness.Wait(ctx, u.Host); err != nil {
			return fetchResult{}, err
		}
		return f.doRequest(ctx, task.URL)
	})

	outcome.Retries = retries
	outcome.Elapsed = time.Since(start)

	if err != nil {
		outcome.Status, outcome.StatusCode = classifyFetchError(err)
		zap.L().Warn("fetch: failed",
			zap.String("url", task.URL),
			zap.String("status", string(outcome.Status)),
			zap.Int("status_code", outcome.StatusCode),
			zap.Int("retries", retries),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Status = model.StatusOK
	outcome.StatusCode = result.code
	outcome.Body = result.body

	if f.ttl > 0 {
		now := time.Now()
		if err := f.cache.Put(ctx, cache.Entry{
			URL:        task.URL,
			Body:       result.body,
			StatusCode: result.code,
			StoredAt:   now,
			ExpiresAt:  now.Add(f.ttl),
		}); err != nil {
			zap.L().Warn("fetch: cache write failed", zap.String("url", task.URL), zap.Error(err))
		}
	}

	zap.L().Debug("fetch: ok",
		zap.String("url", task.URL),
		zap.Int("bytes", len(result.body)),
		zap.Int("retries", retries),
		zap.Duration("elapsed", outcome.Elapsed),
	)
	return outcome
}

// fetchResult is the value threaded through the retry loop.
type fetchResult struct {
	body []byte
	code int
}

func (f *Fetcher) doRequest(ctx context.Context, rawURL string) (fetchResult, error) {
	var out fetchResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return out, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return out, eris.Wrap(err, "fetch: execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return out, resilience.NewTransientError(
				eris.Errorf("fetch: status %d", resp.StatusCode), resp.StatusCode)
		}
		return out, &httpStatusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return out, eris.Wrap(err, "fetch: read body")
	}

	out.body = body
	out.code = resp.StatusCode
	return out, nil
}

func classifyFetchError(err error) (model.FetchStatus, int) {
	var hse *httpStatusError
	if errors.As(err, &hse) {
		return model.StatusHTTPError, hse.code
	}
	var te *resilience.TransientError
	if errors.As(err, &te) && te.StatusCode > 0 {
		return model.StatusHTTPError, te.StatusCode
	}
	return model.StatusNetworkError, 0
}
