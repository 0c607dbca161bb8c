// Package sources wraps each passive intelligence source behind a single
// Collector interface and runs them through a cache-aware Orchestrator.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/rootsploit/deepx/internal/ratelimit"
	"github.com/rootsploit/deepx/internal/subdomain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNoSourceSucceeded is returned by Collect when every selected source failed.
	ErrNoSourceSucceeded = errors.New("no source succeeded")
	// ErrMissingCredentials marks a source that needs an API key it was not given.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Collector fetches hostnames for a domain from one external source.
//
// Fetch never panics on remote failure: transport errors, throttling and
// malformed responses come back as a Result with Success=false.
type Collector interface {
	Name() string
	// CacheQuery returns the source-specific query shape that, together with
	// the domain and Name, identifies a cacheable result.
	CacheQuery(domain string) string
	Fetch(ctx context.Context, domain string) Result
}

// Throttled is implemented by collectors that pace requests through a
// rate limiter.
type Throttled interface {
	RateLimits() *ratelimit.RateLimitSummary
}

// Result is the outcome of one collector invocation. It is not modified
// after it is returned.
type Result struct {
	Source    string
	Hostnames subdomain.Set
	FetchedAt time.Time
	Duration  time.Duration
	Success   bool
	// Partial is set when some pages were retrieved before a failure. Partial
	// results count as success but are not cached.
	Partial   bool
	FromCache bool
	Err       error
}

func (r Result) String() string {
	switch {
	case r.FromCache:
		return fmt.Sprintf("%s: %d hosts (cached)", r.Source, r.Hostnames.Len())
	case !r.Success:
		return fmt.Sprintf("%s: failed: %v", r.Source, r.Err)
	case r.Partial:
		return fmt.Sprintf("%s: %d hosts (partial: %v)", r.Source, r.Hostnames.Len(), r.Err)
	default:
		return fmt.Sprintf("%s: %d hosts", r.Source, r.Hostnames.Len())
	}
}

// finish builds the Result for a fetch that gathered raw names and ended
// with err (possibly nil).
func finish(source, domain string, start time.Time, raw []string, err error) Result {
	hosts := subdomain.Collect(domain, raw)
	r := Result{
		Source:    source,
		Hostnames: hosts,
		FetchedAt: time.Now(),
		Duration:  time.Since(start),
		Err:       err,
	}
	switch {
	case err == nil:
		r.Success = true
	case hosts.Len() > 0:
		r.Success = true
		r.Partial = true
	}
	return r
}

// Settings carries everything collectors need. Zero values fall back to
// the defaults below.
type Settings struct {
	Timeout    time.Duration
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
	// RPS is the initial per-host request rate; 0 means unpaced.
	RPS float64

	OTXKey      string
	OTXMaxPages int

	FofaKey       string
	FofaEmail     string
	FofaQuery     string
	FofaPageSize  int
	FofaMaxPages  int
	FofaPageDelay time.Duration

	// Base URL overrides, mainly for tests.
	CrtShURL   string
	OTXURL     string
	ArchiveURL string
	FofaURL    string

	Log log.FieldLogger
}

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; deepx/1.0)"
	defaultTimeout   = 60 * time.Second
)

func (s Settings) logger() log.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return log.StandardLogger()
}

// Names lists the deep collectors in their default order.
var Names = []string{"otx", "crtsh", "archive"}

// New builds the named collector.
func New(name string, s Settings) (Collector, error) {
	switch strings.ToLower(name) {
	case "otx", "alienvault":
		return NewOTX(s), nil
	case "crtsh", "crt", "crt.sh":
		return NewCrtSh(s), nil
	case "archive", "wayback", "webarchive":
		return NewArchive(s), nil
	case "fofa":
		return NewFofa(s), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

// Build resolves a list of names, dropping duplicates.
func Build(names []string, s Settings) ([]Collector, error) {
	seen := make(map[string]bool)
	var out []Collector
	for _, n := range names {
		c, err := New(n, s)
		if err != nil {
			return nil, err
		}
		if seen[c.Name()] {
			continue
		}
		seen[c.Name()] = true
		out = append(out, c)
	}
	return out, nil
}

// SortResults orders results by source name for stable reporting.
func SortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Source < rs[j].Source })
}
