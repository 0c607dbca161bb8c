package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CrtSh queries certificate transparency logs through crt.sh.
type CrtSh struct {
	baseURL string
	c       *client
}

func NewCrtSh(s Settings) *CrtSh {
	base := s.CrtShURL
	if base == "" {
		base = "https://crt.sh"
	}
	return &CrtSh{baseURL: strings.TrimRight(base, "/"), c: newClient("crtsh", s)}
}

func (*CrtSh) Name() string             { return "crtsh" }
func (*CrtSh) CacheQuery(string) string { return "" }

func (s *CrtSh) Fetch(ctx context.Context, domain string) Result {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/?q=%s&output=json", s.baseURL, url.QueryEscape("%."+domain))

	body, err := s.c.getBody(ctx, endpoint, nil)
	if err != nil {
		return finish(s.Name(), domain, start, nil, err)
	}

	var entries []struct {
		NameValue  string `json:"name_value"`
		CommonName string `json:"common_name"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return finish(s.Name(), domain, start, nil, fmt.Errorf("crtsh: malformed response: %w", err))
	}

	var raw []string
	for _, e := range entries {
		raw = append(raw, strings.Split(e.NameValue, "\n")...)
		if e.CommonName != "" {
			raw = append(raw, e.CommonName)
		}
	}
	return finish(s.Name(), domain, start, raw, nil)
}
