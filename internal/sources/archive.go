package sources

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Archive extracts hosts from the Wayback Machine CDX index. The index is
// streamed as plain text, one original URL per line.
type Archive struct {
	baseURL string
	c       *client
}

func NewArchive(s Settings) *Archive {
	base := s.ArchiveURL
	if base == "" {
		base = "https://web.archive.org"
	}
	return &Archive{baseURL: strings.TrimRight(base, "/"), c: newClient("archive", s)}
}

func (*Archive) Name() string             { return "archive" }
func (*Archive) CacheQuery(string) string { return "" }

func (a *Archive) Fetch(ctx context.Context, domain string) Result {
	start := time.Now()
	q := url.Values{}
	q.Set("url", "*."+domain+"/*")
	q.Set("output", "text")
	q.Set("fl", "original")
	q.Set("collapse", "urlkey")
	endpoint := a.baseURL + "/cdx/search/cdx?" + q.Encode()

	resp, err := a.c.get(ctx, endpoint, nil)
	if err != nil {
		return finish(a.Name(), domain, start, nil, err)
	}
	defer resp.Body.Close()

	// one entry per host is enough; archive listings repeat hosts heavily
	seen := make(map[string]struct{})
	var raw []string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		host := hostOf(line)
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		raw = append(raw, host)
	}
	if err := sc.Err(); err != nil {
		return finish(a.Name(), domain, start, raw, fmt.Errorf("archive: read stream: %w", err))
	}
	return finish(a.Name(), domain, start, raw, nil)
}

// hostOf pulls the host part out of an archived URL, tolerating URLs without
// a scheme.
func hostOf(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i != -1 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i != -1 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
