// Package cache stores per-source collection results with an expiry horizon.
//
// Entries are addressed by (domain, source, query). Freshness is enforced on
// read: an entry older than the store's TTL is reported as a miss even if it
// is still physically present, so PurgeExpired only reclaims space.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/rootsploit/deepx/internal/subdomain"
)

// DefaultTTL matches how long passive source data is considered fresh.
const DefaultTTL = 72 * time.Hour

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Key identifies one cached query.
type Key struct {
	Domain string
	Source string
	// Query is the source-specific query shape, e.g. the exact search
	// expression sent to an indexed source. Empty for sources whose only
	// parameter is the domain.
	Query string
}

// ID returns a stable hex identifier for the key.
func (k Key) ID() string {
	h := sha256.New()
	// NUL separators keep ("a","bc") and ("ab","c") apart.
	h.Write([]byte(strings.ToLower(k.Domain)))
	h.Write([]byte{0})
	h.Write([]byte(k.Source))
	h.Write([]byte{0})
	h.Write([]byte(k.Query))
	return hex.EncodeToString(h.Sum(nil))
}

func (k Key) String() string {
	if k.Query == "" {
		return fmt.Sprintf("%s/%s", k.Source, k.Domain)
	}
	return fmt.Sprintf("%s/%s?%s", k.Source, k.Domain, k.Query)
}

// Store is a key/value cache of hostname sets.
//
// Get returns a copy of the cached set; callers may mutate it freely.
// Put replaces any previous value for the key atomically.
type Store interface {
	Get(ctx context.Context, key Key) (subdomain.Set, bool, error)
	Put(ctx context.Context, key Key, hosts subdomain.Set) error
	PurgeExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes store contents.
type Stats struct {
	Backend string
	Total   int
	Expired int
}

// entry is the persisted form shared by the file and sqlite backends.
type entry struct {
	Domain    string    `json:"domain"`
	Source    string    `json:"source"`
	Query     string    `json:"query,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Hostnames []string  `json:"hostnames"`
}

func newEntry(key Key, hosts subdomain.Set, now time.Time) entry {
	return entry{
		Domain:    key.Domain,
		Source:    key.Source,
		Query:     key.Query,
		CreatedAt: now,
		Hostnames: hosts.Sorted(),
	}
}

// Option configures a store.
type Option func(*base)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	ttl time.Duration
	now func() time.Time
}

func newBase(ttl time.Duration, opts []Option) base {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	b := base{ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(&b)
	}
	return b
}

func (b base) expired(created time.Time) bool {
	return b.now().Sub(created) > b.ttl
}

// Options selects and configures a backend.
type Options struct {
	Backend  string // "file", "sqlite" or "memory"
	Dir      string
	TTL      time.Duration
	Disabled bool
}

// Open builds the store described by opts.
func Open(opts Options, extra ...Option) (Store, error) {
	if opts.Disabled {
		return Disabled{}, nil
	}
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir, opts.TTL, extra...)
	case "sqlite":
		return NewSQLiteStore(opts.Dir, opts.TTL, extra...)
	case "memory":
		return NewMemoryStore(opts.TTL, extra...), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Disabled is a store that never hits and never writes.
type Disabled struct{}

func (Disabled) Get(context.Context, Key) (subdomain.Set, bool, error) { return nil, false, nil }
func (Disabled) Put(context.Context, Key, subdomain.Set) error         { return nil }
func (Disabled) PurgeExpired(context.Context) (int, error)             { return 0, nil }
func (Disabled) Stats(context.Context) (Stats, error)                  { return Stats{Backend: "disabled"}, nil }
func (Disabled) Close() error                                          { return nil }
