package crawler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitescout/internal/model"
)

func task(url string, depth int, score float64) model.CrawlTask {
	return model.CrawlTask{URL: url, Depth: depth, Score: score, Source: model.SourceLink}
}

func TestFrontier_AdmitDeduplicates(t *testing.T) {
	f := NewFrontier(100, 5)

	assert.True(t, f.Admit(task("https://acme.com/a", 0, 0.5)))
	assert.False(t, f.Admit(task("https://acme.com/a", 1, 0.9)), "same URL from a different discovery path")
	assert.Equal(t, 1, f.Len())
}

func TestFrontier_AdmitRejectsBeyondMaxDepth(t *testing.T) {
	f := NewFrontier(100, 2)

	assert.True(t, f.Admit(task("https://acme.com/a", 2, 0.5)))
	assert.False(t, f.Admit(task("https://acme.com/b", 3, 0.9)))
}

func TestFrontier_NextEnforcesMaxPages(t *testing.T) {
	f := NewFrontier(100, 5)

	// Admission is unbounded; the budget caps what is handed out.
	for i := 0; i < 105; i++ {
		require.True(t, f.Admit(task(urlN(i), 0, 0.5)))
	}

	for i := 0; i < 100; i++ {
		_, ok := f.Next()
		require.True(t, ok)
	}
	assert.Equal(t, 100, f.Dispatched())

	// The 101st dispatch is refused even though tasks remain queued.
	_, ok := f.Next()
	assert.False(t, ok)
	assert.Equal(t, 5, f.Len())
}

func TestFrontier_LateHighScorerBeatsQueuedLowScorers(t *testing.T) {
	f := NewFrontier(2, 5)

	require.True(t, f.Admit(task("https://acme.com/low-1", 0, 0.2)))
	require.True(t, f.Admit(task("https://acme.com/low-2", 0, 0.3)))

	first, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://acme.com/low-2", first.URL)

	// Discovered mid-crawl with a better score; it takes the last slot.
	require.True(t, f.Admit(task("https://acme.com/late-high", 1, 0.9)))

	second, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://acme.com/late-high", second.URL)

	_, ok = f.Next()
	assert.False(t, ok, "budget spent")
}

func TestFrontier_NextOrdersByScoreThenDepth(t *testing.T) {
	f := NewFrontier(100, 5)

	require.True(t, f.Admit(task("https://acme.com/low", 0, 0.2)))
	require.True(t, f.Admit(task("https://acme.com/high", 3, 0.9)))
	require.True(t, f.Admit(task("https://acme.com/mid-deep", 2, 0.5)))
	require.True(t, f.Admit(task("https://acme.com/mid-shallow", 1, 0.5)))

	var got []string
	for {
		tk, ok := f.Next()
		if !ok {
			break
		}
		got = append(got, tk.URL)
	}

	assert.Equal(t, []string{
		"https://acme.com/high",
		"https://acme.com/mid-shallow",
		"https://acme.com/mid-deep",
		"https://acme.com/low",
	}, got)
}

func TestFrontier_NextOnEmpty(t *testing.T) {
	f := NewFrontier(10, 5)

	_, ok := f.Next()
	assert.False(t, ok)
}

func urlN(i int) string {
	return fmt.Sprintf("https://acme.com/page-%d", i)
}
