package subdomain

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// ErrInvalidDomain is returned when a target domain cannot be used as a root.
var ErrInvalidDomain = errors.New("invalid domain")

var labelRe = regexp.MustCompile(`^[a-z0-9_]([a-z0-9_-]{0,61}[a-z0-9_])?$`)

// Normalize converts a raw name as found in source output (wildcard
// certificates, URLs, host:port pairs, mixed case, trailing dots) into a
// canonical lowercase ASCII hostname.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty host")
	}

	if i := strings.Index(s, "://"); i != -1 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i != -1 {
		s = s[:i]
	}
	if at := strings.LastIndexByte(s, '@'); at != -1 {
		s = s[at+1:]
	}
	if strings.Contains(s, ":") {
		if h, _, err := net.SplitHostPort(s); err == nil {
			s = h
		}
	}

	s = strings.TrimSuffix(s, ".")
	for strings.HasPrefix(s, "*.") {
		s = s[2:]
	}
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return "", fmt.Errorf("empty host")
	}

	if !isASCII(s) {
		ascii, err := idna.Lookup.ToASCII(s)
		if err != nil {
			return "", fmt.Errorf("idna: %w", err)
		}
		s = ascii
	}
	s = strings.ToLower(s)

	if net.ParseIP(s) != nil {
		return "", fmt.Errorf("ip address %q is not a hostname", s)
	}
	if len(s) > 253 {
		return "", fmt.Errorf("host too long")
	}
	for _, label := range strings.Split(s, ".") {
		if !labelRe.MatchString(label) {
			return "", fmt.Errorf("invalid label %q in %q", label, s)
		}
	}
	return s, nil
}

// ValidateDomain normalizes a target root domain. It must contain at least
// two labels; anything else is rejected with ErrInvalidDomain.
func ValidateDomain(raw string) (string, error) {
	d, err := Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}
	if !strings.Contains(d, ".") {
		return "", fmt.Errorf("%w: %q has no parent zone", ErrInvalidDomain, raw)
	}
	return d, nil
}

// InScope reports whether host equals root or is a subdomain of it. Both
// are expected to be normalized.
func InScope(host, root string) bool {
	if host == root {
		return true
	}
	return strings.HasSuffix(host, "."+root)
}

// Clean normalizes raw and returns it only if it is in scope of root.
func Clean(raw, root string) (string, bool) {
	h, err := Normalize(raw)
	if err != nil || !InScope(h, root) {
		return "", false
	}
	return h, true
}

// Extract finds every in-scope hostname mentioned in free text.
func Extract(text, root string) []string {
	pattern := fmt.Sprintf(`(?i)[a-z0-9*_][-a-z0-9._*]*\.%s[-a-z0-9.]*`, regexp.QuoteMeta(root))
	re := regexp.MustCompile(pattern)

	seen := make(map[string]struct{})
	var out []string
	for _, m := range re.FindAllString(text, -1) {
		h, ok := Clean(m, root)
		if !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
