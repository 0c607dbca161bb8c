package brute

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() log.FieldLogger {
	l := log.New()
	l.Out = io.Discard
	return l
}

type fakeResolver struct {
	records  map[string][]string
	wildcard []string
	delay    map[string]time.Duration

	mu      sync.Mutex
	cur     int
	peak    int
	queried []string
}

func (f *fakeResolver) Lookup(ctx context.Context, host string) ([]string, error) {
	f.mu.Lock()
	f.cur++
	if f.cur > f.peak {
		f.peak = f.cur
	}
	f.queried = append(f.queried, host)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.cur--
		f.mu.Unlock()
	}()

	if d := f.delay[host]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		time.Sleep(time.Millisecond)
	}

	if ans, ok := f.records[host]; ok {
		return ans, nil
	}
	if f.wildcard != nil {
		return f.wildcard, nil
	}
	return nil, ErrNotFound
}

func TestBrute(t *testing.T) {
	r := &fakeResolver{records: map[string][]string{
		"www.example.com":     {"1.1.1.1"},
		"api.dev.example.com": {"edge.cdn.net"},
	}}
	b := New(r, 4, time.Second, quietLogger())

	got := b.Brute(context.Background(), "example.com", []string{"www", "api.dev", "mail", "WWW", "bad label", ""})
	assert.Equal(t, []string{"api.dev.example.com", "www.example.com"}, got.Sorted())
}

func TestBruteEmptyDictionary(t *testing.T) {
	b := New(&fakeResolver{}, 4, time.Second, quietLogger())
	got := b.Brute(context.Background(), "example.com", nil)
	assert.NotNil(t, got)
	assert.Equal(t, 0, got.Len())
}

func TestBruteTimeoutExcludesCandidate(t *testing.T) {
	r := &fakeResolver{
		records: map[string][]string{
			"slow.example.com": {"1.1.1.1"},
			"fast.example.com": {"2.2.2.2"},
		},
		delay: map[string]time.Duration{"slow.example.com": time.Second},
	}
	b := New(r, 4, 30*time.Millisecond, quietLogger())
	b.DetectWildcard = false

	got := b.Brute(context.Background(), "example.com", []string{"slow", "fast"})
	assert.Equal(t, []string{"fast.example.com"}, got.Sorted())
}

func TestBruteWildcardFiltering(t *testing.T) {
	r := &fakeResolver{
		records: map[string][]string{
			"real.example.com": {"10.0.0.5"},
			"also.example.com": {"10.0.0.9", "10.0.0.1"},
		},
		wildcard: []string{"10.0.0.1"},
	}
	b := New(r, 4, time.Second, quietLogger())

	got := b.Brute(context.Background(), "example.com", []string{"real", "also", "junk1", "junk2"})
	assert.Equal(t, []string{"also.example.com", "real.example.com"}, got.Sorted())
}

func TestRandomLabel(t *testing.T) {
	a, err := randomLabel()
	require.NoError(t, err)
	b, err := randomLabel()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "deepx-"))
	assert.Len(t, a, len("deepx-")+32)
	assert.NotEqual(t, a, b)
}

func TestBruteWildcardLabelFailure(t *testing.T) {
	orig := randomLabel
	randomLabel = func() (string, error) { return "", errors.New("entropy unavailable") }
	t.Cleanup(func() { randomLabel = orig })

	r := &fakeResolver{
		records:  map[string][]string{"real.example.com": {"10.0.0.5"}},
		wildcard: []string{"10.0.0.1"},
	}
	b := New(r, 4, time.Second, quietLogger())

	got := b.Brute(context.Background(), "example.com", []string{"real", "junk"})
	assert.Equal(t, []string{"junk.example.com", "real.example.com"}, got.Sorted())
	for _, q := range r.queried {
		assert.False(t, strings.HasPrefix(q, "deepx-"), "no fixed label is queried")
	}
}

func TestBruteConcurrencyBound(t *testing.T) {
	r := &fakeResolver{records: map[string][]string{}}
	var words []string
	for i := 0; i < 50; i++ {
		words = append(words, "w"+strings.Repeat("x", i%10)+string(rune('a'+i%26)))
	}
	b := New(r, 3, time.Second, quietLogger())
	b.DetectWildcard = false
	b.Brute(context.Background(), "example.com", words)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.LessOrEqual(t, r.peak, 3)
	assert.Greater(t, r.peak, 0)
}

func TestBruteCancelledContext(t *testing.T) {
	r := &fakeResolver{records: map[string][]string{"a.example.com": {"1.1.1.1"}}}
	b := New(r, 2, time.Second, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := b.Brute(ctx, "example.com", []string{"a", "b", "c"})
	assert.Equal(t, 0, got.Len())
}

// startDNS runs an in-process nameserver answering from zone.
func startDNS(t *testing.T, zone map[string]dns.RR) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		rr, ok := zone[strings.ToLower(q.Name)]
		switch {
		case !ok:
			m.Rcode = dns.RcodeNameError
		case rr.Header().Rrtype == q.Qtype:
			m.Answer = append(m.Answer, rr)
		case q.Qtype == dns.TypeA && rr.Header().Rrtype == dns.TypeCNAME:
			m.Answer = append(m.Answer, rr)
		}
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func mustRR(t *testing.T, s string) dns.RR {
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func TestDNSResolver(t *testing.T) {
	addr := startDNS(t, map[string]dns.RR{
		"www.example.com.":   mustRR(t, "www.example.com. 60 IN A 192.0.2.10"),
		"alias.example.com.": mustRR(t, "alias.example.com. 60 IN CNAME Target.Example.net."),
		"txt.example.com.":   mustRR(t, `txt.example.com. 60 IN TXT "hello"`),
	})
	r := NewDNSResolver([]string{addr}, time.Second)
	ctx := context.Background()

	ans, err := r.Lookup(ctx, "www.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.10"}, ans)

	ans, err = r.Lookup(ctx, "alias.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"target.example.net"}, ans)

	_, err = r.Lookup(ctx, "missing.example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	// exists, but has neither A nor CNAME
	_, err = r.Lookup(ctx, "txt.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDNSResolverWithBruteforcer(t *testing.T) {
	addr := startDNS(t, map[string]dns.RR{
		"www.example.com.": mustRR(t, "www.example.com. 60 IN A 192.0.2.10"),
	})
	b := New(NewDNSResolver([]string{addr}, time.Second), 10, time.Second, quietLogger())
	got := b.Brute(context.Background(), "example.com", []string{"www", "nope"})
	assert.Equal(t, []string{"www.example.com"}, got.Sorted())
}

func TestNewDNSResolverServers(t *testing.T) {
	r := NewDNSResolver([]string{"9.9.9.9", "1.0.0.1:5353", " ", "# comment"}, 0)
	assert.Equal(t, []string{"9.9.9.9:53", "1.0.0.1:5353"}, r.Servers())

	assert.NotEmpty(t, NewDNSResolver(nil, 0).Servers())
}
