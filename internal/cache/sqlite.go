package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode,
// and runs the schema migration. Expired rows left over from earlier runs
// are purged on open.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.purgeExpired(context.Background())
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS page_cache (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	body        BLOB NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	stored_at   DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the entry for url if present and not expired. A row that
// cannot be scanned is treated as corrupt: deleted and reported as a miss.
func (s *SQLiteStore) Get(ctx context.Context, url string) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, body, title, status_code, stored_at, expires_at FROM page_cache WHERE url = ?`,
		url,
	)

	var e Entry
	err := row.Scan(&e.URL, &e.Body, &e.Title, &e.StatusCode, &e.StoredAt, &e.ExpiresAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		zap.L().Warn("cache: unreadable entry, treating as miss",
			zap.String("url", url),
			zap.Error(err),
		)
		s.delete(ctx, url)
		return nil, false, nil
	}

	if e.Expired(time.Now()) {
		s.delete(ctx, url)
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores the entry, replacing any previous row for the same URL.
func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (id, url, body, title, status_code, stored_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			body = excluded.body,
			title = excluded.title,
			status_code = excluded.status_code,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at`,
		uuid.New().String(), entry.URL, entry.Body, entry.Title,
		entry.StatusCode, entry.StoredAt, entry.ExpiresAt,
	)
	return eris.Wrapf(err, "cache: put %s", entry.URL)
}

func (s *SQLiteStore) delete(ctx context.Context, url string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE url = ?`, url); err != nil {
		zap.L().Debug("cache: delete failed", zap.String("url", url), zap.Error(err))
	}
}

func (s *SQLiteStore) purgeExpired(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		zap.L().Debug("cache: purge failed", zap.Error(err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		zap.L().Debug("cache: purged expired entries", zap.Int64("count", n))
	}
}
