package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rootsploit/deepx/internal/ratelimit"
)

// StatusError is a non-2xx answer from a source.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.Code)
}

// Temporary reports whether retrying could help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// client is the HTTP plumbing shared by collectors. Each collector owns its
// own client so that throttling of one source never slows another.
type client struct {
	source     string
	hc         *http.Client
	limiter    *ratelimit.RateLimiter
	userAgent  string
	retries    int
	retryDelay time.Duration
	log        log.FieldLogger
}

func newClient(source string, s Settings) *client {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := s.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	retries := s.Retries
	if retries < 0 {
		retries = 0
	}
	return &client{
		source: source,
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		limiter:    ratelimit.NewRateLimiter(s.RPS),
		userAgent:  ua,
		retries:    retries,
		retryDelay: s.RetryDelay,
		log:        s.logger().WithField("source", source),
	}
}

// get performs a GET with pacing and retries and returns the open response
// for a 2xx answer. The caller closes the body.
func (c *client) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	host := u.Host

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay
			var se *StatusError
			if errors.As(lastErr, &se) && se.Code == http.StatusTooManyRequests {
				delay *= 2
			}
			c.log.WithFields(log.Fields{"attempt": attempt, "delay": delay}).Debugf("retrying after: %v", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, rawURL, header)
		if err == nil {
			c.limiter.RecordResponse(host, resp.StatusCode, resp.Header)
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			err = &StatusError{Source: c.source, Code: resp.StatusCode}
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// getBody reads the whole body of a successful GET.
func (c *client) getBody(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	resp, err := c.get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.source, err)
	}
	return body, nil
}

func (c *client) do(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.hc.Do(req)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *client) summary() *ratelimit.RateLimitSummary {
	return c.limiter.GetSummary()
}

func (c *CrtSh) RateLimits() *ratelimit.RateLimitSummary   { return c.c.summary() }
func (o *OTX) RateLimits() *ratelimit.RateLimitSummary     { return o.c.summary() }
func (a *Archive) RateLimits() *ratelimit.RateLimitSummary { return a.c.summary() }
func (f *Fofa) RateLimits() *ratelimit.RateLimitSummary    { return f.c.summary() }
