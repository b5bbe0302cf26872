package crawler

import (
	"container/heap"
	"sync"

	"github.com/sells-group/sitescout/internal/model"
)

// Frontier holds discovered, not-yet-fetched tasks ordered by score
// (descending) with depth (ascending) as the tie-break, so shallow pages
// near the seed win over deep low-confidence branches. It is the single
// authority for deduplication and for the max-pages ceiling: a URL admitted
// once is never admitted again, and once maxPages tasks have been handed
// out no further task ever is. The queue itself is unbounded so that a
// high-scoring URL discovered late can still beat earlier low scorers to
// the remaining budget.
type Frontier struct {
	mu         sync.Mutex
	tasks      taskHeap
	visited    map[string]struct{}
	dispatched int
	maxPages   int
	maxDepth   int
}

// NewFrontier creates a Frontier bounded by maxPages and maxDepth.
func NewFrontier(maxPages, maxDepth int) *Frontier {
	return &Frontier{
		visited:  make(map[string]struct{}),
		maxPages: maxPages,
		maxDepth: maxDepth,
	}
}

// Admit offers a task to the frontier. It is rejected when the URL was
// already scheduled or its depth exceeds the ceiling. On accept the URL is
// marked visited immediately, so a URL discovered twice through different
// paths is scheduled exactly once.
func (f *Frontier) Admit(task model.CrawlTask) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if task.Depth > f.maxDepth {
		return false
	}
	if _, seen := f.visited[task.URL]; seen {
		return false
	}

	f.visited[task.URL] = struct{}{}
	heap.Push(&f.tasks, task)
	return true
}

// Next pops the highest-priority task. ok is false when the frontier is
// empty or the page budget is exhausted. An empty frontier may still refill
// while in-flight pages discover new links; an exhausted budget is final.
func (f *Frontier) Next() (model.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dispatched >= f.maxPages || f.tasks.Len() == 0 {
		return model.CrawlTask{}, false
	}
	f.dispatched++
	return heap.Pop(&f.tasks).(model.CrawlTask), true
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks.Len()
}

// Dispatched returns the total number of tasks handed out so far.
func (f *Frontier) Dispatched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatched
}

// taskHeap implements heap.Interface; higher score first, then lower depth.
type taskHeap []model.CrawlTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].Depth < h[j].Depth
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(model.CrawlTask))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	*h = old[:n-1]
	return task
}
