package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/rootsploit/deepx/internal/subdomain"
)

// SQLiteStore keeps entries in a single cache.db file. Each Put is one
// upsert statement, which SQLite applies atomically.
type SQLiteStore struct {
	base
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) dir/cache.db. dir may be ":memory:".
func NewSQLiteStore(dir string, ttl time.Duration, opts ...Option) (*SQLiteStore, error) {
	path := dir
	if dir != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		path = filepath.Join(dir, "cache.db")
	}

	// busy_timeout must be set on every pooled connection, so it goes in the DSN
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if dir == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{base: newBase(ttl, opts), db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		source TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		hostnames TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_domain ON cache_entries(domain);
	CREATE INDEX IF NOT EXISTS idx_cache_created ON cache_entries(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.dbPath }

func (s *SQLiteStore) Get(ctx context.Context, key Key) (subdomain.Set, bool, error) {
	var (
		created int64
		payload string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, hostnames FROM cache_entries WHERE id = ?`, key.ID(),
	).Scan(&created, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry %s: %w", key, err)
	}
	if s.expired(time.Unix(0, created)) {
		return nil, false, nil
	}

	var hosts []string
	if err := json.Unmarshal([]byte(payload), &hosts); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return subdomain.NewSet(hosts...), true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, hosts subdomain.Set) error {
	e := newEntry(key, hosts, s.now())
	payload, err := json.Marshal(e.Hostnames)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (id, domain, source, query, created_at, hostnames)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			hostnames = excluded.hostnames`,
		key.ID(), e.Domain, e.Source, e.Query, e.CreatedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "sqlite"}
	cutoff := s.now().Add(-s.ttl).UnixNano()
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN created_at < ? THEN 1 ELSE 0 END), 0)
		FROM cache_entries`, cutoff,
	).Scan(&st.Total, &st.Expired)
	if err != nil {
		return st, fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
