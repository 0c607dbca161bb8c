package sources

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultFofaQuery matches assets indexed under the domain or presenting a
// certificate for it. {domain} is replaced with the target.
const DefaultFofaQuery = `domain="{domain}" || cert="{domain}"`

// Fofa queries the FOFA search engine. It is the indexed source that deep
// collection is compared against.
type Fofa struct {
	baseURL   string
	key       string
	email     string
	query     string
	pageSize  int
	maxPages  int
	pageDelay time.Duration
	c         *client
}

func NewFofa(s Settings) *Fofa {
	base := s.FofaURL
	if base == "" {
		base = "https://fofa.info"
	}
	q := s.FofaQuery
	if q == "" {
		q = DefaultFofaQuery
	}
	size := s.FofaPageSize
	if size <= 0 {
		size = 100
	}
	pages := s.FofaMaxPages
	if pages <= 0 {
		pages = 3
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 5 * time.Second
	}
	return &Fofa{
		baseURL:   strings.TrimRight(base, "/"),
		key:       s.FofaKey,
		email:     s.FofaEmail,
		query:     q,
		pageSize:  size,
		maxPages:  pages,
		pageDelay: s.FofaPageDelay,
		c:         newClient("fofa", s),
	}
}

func (*Fofa) Name() string { return "fofa" }

// CacheQuery is the expanded search expression, so different queries for
// the same domain are cached separately.
func (f *Fofa) CacheQuery(domain string) string {
	return f.Query(domain)
}

// Query expands the configured search template for domain.
func (f *Fofa) Query(domain string) string {
	return strings.ReplaceAll(f.query, "{domain}", domain)
}

type fofaResponse struct {
	Error   bool       `json:"error"`
	ErrMsg  string     `json:"errmsg"`
	Size    int        `json:"size"`
	Page    int        `json:"page"`
	Results [][]string `json:"results"`
}

func (f *Fofa) Fetch(ctx context.Context, domain string) Result {
	start := time.Now()
	if f.key == "" {
		return finish(f.Name(), domain, start, nil, fmt.Errorf("fofa: %w: api key not set", ErrMissingCredentials))
	}

	query := f.Query(domain)
	var raw []string
	for page := 1; page <= f.maxPages; page++ {
		if page > 1 {
			if err := sleep(ctx, f.pageDelay); err != nil {
				return finish(f.Name(), domain, start, raw, err)
			}
		}

		resp, err := f.page(ctx, query, page)
		if err != nil {
			return finish(f.Name(), domain, start, raw, fmt.Errorf("fofa page %d: %w", page, err))
		}
		for _, row := range resp.Results {
			raw = append(raw, row...)
		}
		f.c.log.WithField("page", page).Debugf("fofa returned %d rows of %d", len(resp.Results), resp.Size)

		if len(resp.Results) < f.pageSize || page*f.pageSize >= resp.Size {
			break
		}
	}
	return finish(f.Name(), domain, start, raw, nil)
}

func (f *Fofa) page(ctx context.Context, query string, page int) (*fofaResponse, error) {
	v := url.Values{}
	v.Set("key", f.key)
	if f.email != "" {
		v.Set("email", f.email)
	}
	v.Set("qbase64", base64.StdEncoding.EncodeToString([]byte(query)))
	v.Set("fields", "host,domain")
	v.Set("page", strconv.Itoa(page))
	v.Set("size", strconv.Itoa(f.pageSize))

	body, err := f.c.getBody(ctx, f.baseURL+"/api/v1/search/all?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp fofaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Error {
		msg := resp.ErrMsg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, errors.New(msg)
	}
	return &resp, nil
}
