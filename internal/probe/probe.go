// Package probe checks which hostnames answer over HTTPS or HTTP.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rootsploit/deepx/internal/subdomain"
)

const (
	// MaxRedirects is the redirect chain length followed before giving up.
	MaxRedirects = 10
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes = 5 << 20

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Schemes are tried in order; the first that answers wins.
var Schemes = []string{"https", "http"}

// Record is the liveness outcome for one host.
type Record struct {
	Host       string        `json:"host"`
	Scheme     string        `json:"scheme"`
	Alive      bool          `json:"alive"`
	StatusCode int           `json:"status_code,omitempty"`
	Title      string        `json:"title,omitempty"`
	Size       int64         `json:"size,omitempty"`
	FinalURL   string        `json:"final_url,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// URL is the scheme-qualified address that was probed.
func (r Record) URL() string {
	return r.Scheme + "://" + r.Host
}

// Prober issues the HTTP checks. It is safe for concurrent use.
type Prober struct {
	client      *http.Client
	concurrency int
	timeout     time.Duration
	userAgent   string
	log         log.FieldLogger
}

// Option configures a Prober.
type Option func(*Prober, *http.Transport)

// WithDialContext replaces the transport dialer. Tests use it to point
// hostnames at local listeners.
func WithDialContext(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(_ *Prober, t *http.Transport) { t.DialContext = dial }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Prober, _ *http.Transport) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// New returns a prober running at most concurrency checks at once, each
// attempt bounded by timeout.
func New(concurrency int, timeout time.Duration, logger log.FieldLogger, opts ...Option) *Prober {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: timeout,
		DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
	}
	p := &Prober{
		concurrency: concurrency,
		timeout:     timeout,
		userAgent:   defaultUserAgent,
		log:         logger,
	}
	for _, opt := range opts {
		opt(p, transport)
	}
	p.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			return nil
		},
	}
	return p
}

// Probe checks every host and returns exactly one record per host, sorted
// by hostname. A cancelled ctx marks the remaining hosts dead.
func (p *Prober) Probe(ctx context.Context, hosts subdomain.Set) []Record {
	list := hosts.Sorted()
	records := make([]Record, len(list))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	var alive int
	var mu sync.Mutex
	for i, host := range list {
		i, host := i, host
		g.Go(func() error {
			rec := p.Check(ctx, host)
			records[i] = rec
			if rec.Alive {
				mu.Lock()
				alive++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	p.log.WithFields(log.Fields{"total": len(list), "alive": alive}).Info("liveness probe finished")
	return records
}

// Check probes a single host over each scheme in turn.
func (p *Prober) Check(ctx context.Context, host string) Record {
	for _, scheme := range Schemes {
		if ctx.Err() != nil {
			break
		}
		rec, err := p.fetch(ctx, scheme, host)
		if err == nil {
			return rec
		}
		p.log.WithFields(log.Fields{"host": host, "scheme": scheme}).Debugf("probe failed: %v", err)
	}
	return Record{Host: host, Scheme: Schemes[0]}
}

func (p *Prober) fetch(ctx context.Context, scheme, host string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host, nil)
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		// headers arrived; a truncated body still counts as alive
		p.log.WithField("host", host).Debugf("body read: %v", err)
	}

	size := resp.ContentLength
	if size < 0 {
		size = int64(len(body))
	}

	rec := Record{
		Host:       host,
		Scheme:     scheme,
		Alive:      true,
		StatusCode: resp.StatusCode,
		Size:       size,
		FinalURL:   resp.Request.URL.String(),
		Duration:   time.Since(start),
	}
	if isHTML(resp.Header.Get("Content-Type"), body) {
		rec.Title = Title(body)
	}
	return rec, nil
}

func isHTML(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html")
}

// Title extracts the document title with runs of whitespace collapsed.
// It returns "" when the page has no title.
func Title(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

// Alive returns the records that answered.
func Alive(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Alive {
			out = append(out, r)
		}
	}
	return out
}
