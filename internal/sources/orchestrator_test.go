package sources

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsploit/deepx/internal/cache"
	"github.com/rootsploit/deepx/internal/subdomain"
)

type fakeCollector struct {
	name    string
	query   string
	hosts   []string
	err     error
	partial bool
	delay   time.Duration
	calls   int32
	shared  *concurrencyProbe
}

type concurrencyProbe struct {
	mu   sync.Mutex
	cur  int
	peak int
}

func (p *concurrencyProbe) enter() {
	p.mu.Lock()
	p.cur++
	if p.cur > p.peak {
		p.peak = p.cur
	}
	p.mu.Unlock()
}

func (p *concurrencyProbe) leave() {
	p.mu.Lock()
	p.cur--
	p.mu.Unlock()
}

func (f *fakeCollector) Name() string             { return f.name }
func (f *fakeCollector) CacheQuery(string) string { return f.query }

func (f *fakeCollector) Fetch(ctx context.Context, domain string) Result {
	atomic.AddInt32(&f.calls, 1)
	if f.shared != nil {
		f.shared.enter()
		defer f.shared.leave()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return finish(f.name, domain, time.Now(), nil, ctx.Err())
		}
	}
	r := finish(f.name, domain, time.Now(), f.hosts, f.err)
	if f.partial {
		r.Success, r.Partial = true, true
	}
	return r
}

func TestCollectMergesAndReportsFailures(t *testing.T) {
	cs := []Collector{
		&fakeCollector{name: "a", hosts: []string{"x.example.com", "y.example.com"}},
		&fakeCollector{name: "b", err: errors.New("timeout")},
		&fakeCollector{name: "c", hosts: []string{"y.example.com", "z.example.com", "out.of.scope.org"}},
		&fakeCollector{name: "d", err: &StatusError{Source: "d", Code: 429}},
	}
	o := NewOrchestrator(cache.NewMemoryStore(time.Hour), 4, quietLogger(), nil)

	col, err := o.Collect(context.Background(), "example.com", cs)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.example.com", "y.example.com", "z.example.com"}, col.Hostnames.Sorted())
	require.Len(t, col.Results, 4)

	failed := col.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "b", failed[0].Source)
	assert.Equal(t, "d", failed[1].Source)
	assert.Equal(t, map[string]int{"a": 2, "b": 0, "c": 2, "d": 0}, col.BySource())
}

func TestCollectAllFail(t *testing.T) {
	cs := []Collector{
		&fakeCollector{name: "a", err: errors.New("boom")},
		&fakeCollector{name: "b", err: errors.New("boom")},
	}
	o := NewOrchestrator(nil, 2, quietLogger(), nil)
	col, err := o.Collect(context.Background(), "example.com", cs)
	assert.ErrorIs(t, err, ErrNoSourceSucceeded)
	assert.Len(t, col.Results, 2)
	assert.Equal(t, 0, col.Hostnames.Len())
}

func TestCollectUsesCache(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	a := &fakeCollector{name: "a", hosts: []string{"x.example.com"}}
	o := NewOrchestrator(store, 2, quietLogger(), nil)

	_, err := o.Collect(context.Background(), "example.com", []Collector{a})
	require.NoError(t, err)
	col, err := o.Collect(context.Background(), "example.com", []Collector{a})
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&a.calls))
	require.Len(t, col.Results, 1)
	assert.True(t, col.Results[0].FromCache)
	assert.Equal(t, []string{"x.example.com"}, col.Hostnames.Sorted())
}

func TestCollectDoesNotCacheFailuresOrPartials(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	failing := &fakeCollector{name: "a", err: errors.New("down")}
	partial := &fakeCollector{name: "b", hosts: []string{"p.example.com"}, err: errors.New("page 2"), partial: true}
	o := NewOrchestrator(store, 2, quietLogger(), nil)

	for i := 0; i < 2; i++ {
		_, err := o.Collect(context.Background(), "example.com", []Collector{failing, partial})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&failing.calls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&partial.calls))
}

func TestCollectDisabledCache(t *testing.T) {
	a := &fakeCollector{name: "a", hosts: []string{"x.example.com"}}
	o := NewOrchestrator(cache.Disabled{}, 1, quietLogger(), nil)
	for i := 0; i < 3; i++ {
		_, err := o.Collect(context.Background(), "example.com", []Collector{a})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&a.calls))
}

func TestCollectSingleFetchPerKey(t *testing.T) {
	// the same collector selected several times maps to one cache key
	a := &fakeCollector{name: "a", hosts: []string{"x.example.com"}, delay: 50 * time.Millisecond}
	o := NewOrchestrator(cache.Disabled{}, 4, quietLogger(), nil)

	col, err := o.Collect(context.Background(), "example.com", []Collector{a, a, a, a})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&a.calls))
	require.Len(t, col.Results, 4)
	for _, r := range col.Results {
		assert.Equal(t, []string{"x.example.com"}, r.Hostnames.Sorted())
	}

	col.Results[0].Hostnames.Add("mutated.example.com")
	assert.False(t, col.Results[1].Hostnames.Contains("mutated.example.com"))
}

func TestCollectConcurrencyLimit(t *testing.T) {
	probe := &concurrencyProbe{}
	var cs []Collector
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		cs = append(cs, &fakeCollector{name: n, hosts: []string{n + ".example.com"}, delay: 20 * time.Millisecond, shared: probe})
	}
	o := NewOrchestrator(nil, 2, quietLogger(), nil)

	col, err := o.Collect(context.Background(), "example.com", cs)
	require.NoError(t, err)
	assert.Equal(t, 6, col.Hostnames.Len())
	assert.LessOrEqual(t, probe.peak, 2)
	assert.Equal(t, 2, probe.peak)
}

func TestCollectDeadlineKeepsCompletedResults(t *testing.T) {
	fast := &fakeCollector{name: "fast", hosts: []string{"f.example.com"}}
	slow := &fakeCollector{name: "slow", hosts: []string{"s.example.com"}, delay: 5 * time.Second}
	o := NewOrchestrator(nil, 2, quietLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	col, err := o.Collect(ctx, "example.com", []Collector{fast, slow})
	require.NoError(t, err)
	assert.Equal(t, []string{"f.example.com"}, col.Hostnames.Sorted())
	assert.False(t, col.Results[1].Success)
	assert.ErrorIs(t, col.Results[1].Err, context.DeadlineExceeded)
}

type brokenStore struct{ cache.Disabled }

func (brokenStore) Get(context.Context, cache.Key) (subdomain.Set, bool, error) {
	return nil, false, errors.New("corrupt")
}

func TestCollectCacheErrorFallsBackToFetch(t *testing.T) {
	a := &fakeCollector{name: "a", hosts: []string{"x.example.com"}}
	o := NewOrchestrator(brokenStore{}, 1, quietLogger(), nil)
	col, err := o.Collect(context.Background(), "example.com", []Collector{a})
	require.NoError(t, err)
	assert.Equal(t, 1, col.Hostnames.Len())
	assert.EqualValues(t, 1, atomic.LoadInt32(&a.calls))
}

func TestCollectNoCollectors(t *testing.T) {
	o := NewOrchestrator(nil, 1, quietLogger(), nil)
	_, err := o.Collect(context.Background(), "example.com", nil)
	assert.Error(t, err)
}
