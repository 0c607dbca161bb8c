package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OTX collects from AlienVault OTX: the passive DNS table plus the
// paginated URL list for the domain.
type OTX struct {
	baseURL  string
	key      string
	maxPages int
	c        *client
}

const otxPageLimit = 500

func NewOTX(s Settings) *OTX {
	base := s.OTXURL
	if base == "" {
		base = "https://otx.alienvault.com"
	}
	pages := s.OTXMaxPages
	if pages <= 0 {
		pages = 10
	}
	return &OTX{
		baseURL:  strings.TrimRight(base, "/"),
		key:      s.OTXKey,
		maxPages: pages,
		c:        newClient("otx", s),
	}
}

func (*OTX) Name() string             { return "otx" }
func (*OTX) CacheQuery(string) string { return "" }

func (o *OTX) header() http.Header {
	h := http.Header{}
	if o.key != "" {
		h.Set("X-OTX-API-KEY", o.key)
	}
	return h
}

func (o *OTX) Fetch(ctx context.Context, domain string) Result {
	start := time.Now()
	var (
		raw  []string
		errs []error
	)

	names, err := o.passiveDNS(ctx, domain)
	raw = append(raw, names...)
	if err != nil {
		errs = append(errs, err)
	}

	names, err = o.urlList(ctx, domain)
	raw = append(raw, names...)
	if err != nil {
		errs = append(errs, err)
	}

	return finish(o.Name(), domain, start, raw, errors.Join(errs...))
}

func (o *OTX) passiveDNS(ctx context.Context, domain string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/indicators/domain/%s/passive_dns", o.baseURL, url.PathEscape(domain))
	body, err := o.c.getBody(ctx, endpoint, o.header())
	if err != nil {
		return nil, fmt.Errorf("otx passive_dns: %w", err)
	}

	var resp struct {
		PassiveDNS []struct {
			Hostname string `json:"hostname"`
		} `json:"passive_dns"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("otx passive_dns: malformed response: %w", err)
	}
	out := make([]string, 0, len(resp.PassiveDNS))
	for _, r := range resp.PassiveDNS {
		out = append(out, r.Hostname)
	}
	return out, nil
}

func (o *OTX) urlList(ctx context.Context, domain string) ([]string, error) {
	var out []string
	for page := 1; page <= o.maxPages; page++ {
		endpoint := fmt.Sprintf("%s/api/v1/indicators/domain/%s/url_list?limit=%d&page=%d",
			o.baseURL, url.PathEscape(domain), otxPageLimit, page)
		body, err := o.c.getBody(ctx, endpoint, o.header())
		if err != nil {
			return out, fmt.Errorf("otx url_list page %d: %w", page, err)
		}

		var resp struct {
			URLList []struct {
				URL      string `json:"url"`
				Hostname string `json:"hostname"`
			} `json:"url_list"`
			HasNext bool `json:"has_next"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return out, fmt.Errorf("otx url_list page %d: malformed response: %w", page, err)
		}
		for _, u := range resp.URLList {
			if u.Hostname != "" {
				out = append(out, u.Hostname)
			}
			if u.URL != "" {
				out = append(out, u.URL)
			}
		}
		if !resp.HasNext || len(resp.URLList) == 0 {
			break
		}
	}
	return out, nil
}
