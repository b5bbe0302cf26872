// Package cache persists fetch results keyed by URL with a time-to-live,
// avoiding redundant network and analysis work across runs.
package cache

import (
	"context"
	"time"
)

// Entry is one cached fetch result. Expiry is evaluated at read time.
type Entry struct {
	URL        string
	Body       []byte
	Title      string
	StatusCode int
	StoredAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry is stale at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is the fetch cache. Get returns ok=false for missing or expired
// entries; unreadable entries are treated as misses, never as errors that
// stop a crawl. Put overwrites any previous entry for the same URL.
type Store interface {
	Get(ctx context.Context, url string) (*Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	Close() error
}
