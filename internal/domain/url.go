package domain

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for comparison: surrounding whitespace
// is trimmed and exactly one trailing slash is removed.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	return strings.TrimSuffix(s, "/")
}

// Domain returns the lower-cased host of raw, or "" if it has none.
func Domain(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// DomainBlocked reports whether link's host is one of blocked or a
// subdomain of one. Entries are matched case-insensitively.
func DomainBlocked(link string, blocked []string) bool {
	host := Domain(link)
	if host == "" {
		return false
	}
	for _, b := range blocked {
		b = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(b)), ".")
		if b != "" && (host == b || strings.HasSuffix(host, "."+b)) {
			return true
		}
	}
	return false
}

// URLSet is a set of normalized URLs.
type URLSet map[string]struct{}

// NewURLSet normalizes and collects urls; empty entries are dropped.
func NewURLSet(urls ...string) URLSet {
	set := make(URLSet, len(urls))
	for _, u := range urls {
		set.Add(u)
	}
	return set
}

// Add normalizes u and inserts it. It reports whether u was new.
func (s URLSet) Add(u string) bool {
	n := NormalizeURL(u)
	if n == "" {
		return false
	}
	if _, ok := s[n]; ok {
		return false
	}
	s[n] = struct{}{}
	return true
}

// Has reports whether the normalized form of u is in the set.
func (s URLSet) Has(u string) bool {
	_, ok := s[NormalizeURL(u)]
	return ok
}

// Union adds every member of other to s.
func (s URLSet) Union(other URLSet) URLSet {
	for k := range other {
		s[k] = struct{}{}
	}
	return s
}
