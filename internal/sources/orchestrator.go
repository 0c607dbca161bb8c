package sources

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rootsploit/deepx/internal/cache"
	"github.com/rootsploit/deepx/internal/debug"
	"github.com/rootsploit/deepx/internal/subdomain"
)

// Collection is the merged output of one Collect call.
type Collection struct {
	Hostnames subdomain.Set
	// Results holds one entry per selected collector, in selection order.
	Results []Result
}

// Failed returns the results of sources that produced nothing usable.
func (c Collection) Failed() []Result {
	var out []Result
	for _, r := range c.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// BySource returns per-source host counts.
func (c Collection) BySource() map[string]int {
	m := make(map[string]int, len(c.Results))
	for _, r := range c.Results {
		m[r.Source] = r.Hostnames.Len()
	}
	return m
}

// Orchestrator runs collectors concurrently behind a cache.
type Orchestrator struct {
	store       cache.Store
	concurrency int
	log         log.FieldLogger
	tracer      *debug.Tracer
}

// NewOrchestrator returns an orchestrator that runs at most concurrency
// collectors at once. A nil store behaves as a disabled cache.
func NewOrchestrator(store cache.Store, concurrency int, logger log.FieldLogger, tracer *debug.Tracer) *Orchestrator {
	if store == nil {
		store = cache.Disabled{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Orchestrator{store: store, concurrency: concurrency, log: logger, tracer: tracer}
}

// Collect runs every collector against domain and merges their output.
//
// Each source is looked up in the cache first; only misses reach the
// network, and only complete successes are written back. Source failures
// are recorded in the returned Collection. The error is non-nil only when
// no source succeeded at all.
func (o *Orchestrator) Collect(ctx context.Context, domain string, collectors []Collector) (Collection, error) {
	if len(collectors) == 0 {
		return Collection{Hostnames: subdomain.NewSet()}, fmt.Errorf("no sources selected")
	}

	// per-invocation: two collectors mapping to the same key share one fetch
	var flight singleflight.Group
	results := make([]Result, len(collectors))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, c := range collectors {
		i, c := i, c
		g.Go(func() error {
			results[i] = o.collectOne(ctx, &flight, domain, c)
			return nil
		})
	}
	g.Wait()

	merged := subdomain.NewSet()
	succeeded := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		succeeded++
		merged.Merge(r.Hostnames)
	}

	out := Collection{Hostnames: merged, Results: results}
	if succeeded == 0 {
		return out, fmt.Errorf("%w for %s (%d tried)", ErrNoSourceSucceeded, domain, len(collectors))
	}
	return out, nil
}

func (o *Orchestrator) collectOne(ctx context.Context, flight *singleflight.Group, domain string, c Collector) Result {
	key := cache.Key{Domain: domain, Source: c.Name(), Query: c.CacheQuery(domain)}
	logger := o.log.WithFields(log.Fields{"source": c.Name(), "domain": domain})

	v, _, _ := flight.Do(key.ID(), func() (interface{}, error) {
		if hosts, hit, err := o.store.Get(ctx, key); err != nil {
			logger.WithError(err).Warn("cache read failed, fetching live")
		} else if hit {
			logger.WithField("hosts", hosts.Len()).Debug("cache hit")
			return Result{
				Source:    c.Name(),
				Hostnames: hosts,
				FetchedAt: time.Now(),
				Success:   true,
				FromCache: true,
			}, nil
		}

		start := o.tracer.Start(c.Name(), domain)
		r := c.Fetch(ctx, domain)
		o.tracer.End(c.Name(), start, r.Err, r.Hostnames.Len())
		if r.Hostnames == nil {
			r.Hostnames = subdomain.NewSet()
		}

		switch {
		case !r.Success:
			logger.WithError(r.Err).Warn("source failed")
		case r.Partial:
			logger.WithError(r.Err).WithField("hosts", r.Hostnames.Len()).Warn("source returned partial results")
		default:
			logger.WithField("hosts", r.Hostnames.Len()).Info("source completed")
			if err := o.store.Put(ctx, key, r.Hostnames); err != nil {
				logger.WithError(err).Warn("cache write failed")
			}
		}
		return r, nil
	})

	r := v.(Result)
	// shared results must not alias between callers
	r.Hostnames = r.Hostnames.Clone()
	return r
}
