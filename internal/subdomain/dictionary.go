package subdomain

import (
	"sort"
	"strings"
)

// BuildDictionary extracts brute-force candidate labels from known hosts.
//
// For every host under root the remainder left of the root is split into
// labels. The first label is always emitted; with maxLevels > 1 each
// contiguous prefix up to maxLevels labels deep is emitted as well, so
// api.dev.example.com yields "api" and "api.dev" for maxLevels=2.
// The result is deduplicated and sorted.
func BuildDictionary(root string, hosts Set, maxLevels int) []string {
	if maxLevels < 1 {
		maxLevels = 1
	}
	suffix := "." + root

	words := make(map[string]struct{})
	for h := range hosts {
		if !strings.HasSuffix(h, suffix) {
			continue
		}
		rest := strings.TrimSuffix(h, suffix)
		if rest == "" {
			continue
		}
		labels := strings.Split(rest, ".")
		for depth := 1; depth <= maxLevels && depth <= len(labels); depth++ {
			word := strings.Join(labels[:depth], ".")
			if word == "" {
				continue
			}
			words[word] = struct{}{}
		}
	}

	out := make([]string, 0, len(words))
	for w := range words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// MergeWords unions word lists, dropping blanks, and returns them sorted.
func MergeWords(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, w := range l {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" || strings.HasPrefix(w, "#") {
				continue
			}
			seen[w] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
