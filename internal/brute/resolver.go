package brute

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// ErrNotFound means the name has no A or CNAME record.
var ErrNotFound = errors.New("no such host")

// Resolver answers "does this name resolve, and to what".
type Resolver interface {
	Lookup(ctx context.Context, host string) ([]string, error)
}

// FallbackServers are used when neither the caller nor resolv.conf supply any.
var FallbackServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// DNSResolver queries nameservers directly: an A lookup first, then CNAME.
type DNSResolver struct {
	client  *dns.Client
	servers []string
	next    uint32
}

// NewDNSResolver builds a resolver over servers ("host" or "host:port").
// An empty list falls back to the system configuration.
func NewDNSResolver(servers []string, timeout time.Duration) *DNSResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	var norm []string
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		norm = append(norm, s)
	}
	if len(norm) == 0 {
		norm = SystemServers()
	}
	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: norm,
	}
}

// SystemServers reads nameservers from /etc/resolv.conf.
func SystemServers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return append([]string(nil), FallbackServers...)
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out
}

// Servers returns the nameservers in use.
func (r *DNSResolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

func (r *DNSResolver) Lookup(ctx context.Context, host string) ([]string, error) {
	answers, err := r.query(ctx, host, dns.TypeA)
	if len(answers) > 0 {
		return answers, nil
	}
	if err == nil {
		// NODATA for A; the name exists, so it may still be an alias
		answers, err = r.query(ctx, host, dns.TypeCNAME)
		if len(answers) > 0 {
			return answers, nil
		}
	}
	if err == nil {
		err = ErrNotFound
	}
	return nil, err
}

// query asks each server in turn, starting from a rotating offset so that
// load spreads across the list. NXDOMAIN is authoritative and ends the loop.
func (r *DNSResolver) query(ctx context.Context, host string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	start := int(atomic.AddUint32(&r.next, 1))
	var lastErr error
	for i := range r.servers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		srv := r.servers[(start+i)%len(r.servers)]
		resp, _, err := r.client.ExchangeContext(ctx, msg, srv)
		if err != nil {
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return extract(resp, qtype), nil
		case dns.RcodeNameError:
			return nil, ErrNotFound
		default:
			lastErr = fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no nameservers configured")
	}
	return nil, lastErr
}

func extract(resp *dns.Msg, qtype uint16) []string {
	var out []string
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, v.A.String())
			}
		case *dns.CNAME:
			out = append(out, strings.TrimSuffix(strings.ToLower(v.Target), "."))
		}
	}
	return out
}
