package subdomain

import "sort"

// Set is a deduplicated collection of normalized hostnames.
type Set map[string]struct{}

// NewSet builds a set from already-normalized hostnames.
func NewSet(hosts ...string) Set {
	s := make(Set, len(hosts))
	for _, h := range hosts {
		s[h] = struct{}{}
	}
	return s
}

// Collect normalizes every raw name, keeps the in-scope ones and returns
// them as a set.
func Collect(root string, raw []string) Set {
	s := make(Set, len(raw))
	for _, r := range raw {
		if h, ok := Clean(r, root); ok {
			s[h] = struct{}{}
		}
	}
	return s
}

func (s Set) Add(host string) { s[host] = struct{}{} }

func (s Set) Contains(host string) bool {
	_, ok := s[host]
	return ok
}

func (s Set) Len() int { return len(s) }

// Clone returns an independent copy. A nil set clones to an empty set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for h := range s {
		out[h] = struct{}{}
	}
	return out
}

// Merge adds every member of other into s.
func (s Set) Merge(other Set) {
	for h := range other {
		s[h] = struct{}{}
	}
}

// Union returns a new set holding the members of all given sets.
func Union(sets ...Set) Set {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make(Set, n)
	for _, s := range sets {
		out.Merge(s)
	}
	return out
}

// Difference returns the members of a that are not in b.
func Difference(a, b Set) Set {
	out := make(Set)
	for h := range a {
		if !b.Contains(h) {
			out[h] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
