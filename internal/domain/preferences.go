package domain

import (
	"slices"
	"strings"
)

// DefaultFontSize matches the dashboard's initial body font size.
const DefaultFontSize = 18

// Preferences is the process-wide settings document.
type Preferences struct {
	FontSize       int      `json:"font_size"`
	BlockedDomains []string `json:"blocked_domains,omitempty"`
	// DeletedURLs is the permanent ingestion blacklist (normalized URLs).
	DeletedURLs []string `json:"deleted_urls,omitempty"`
	// TimeoutStrikes counts consecutive budget overruns per normalized URL.
	TimeoutStrikes map[string]int `json:"timeout_strikes,omitempty"`
}

// DefaultPreferences returns the document written on first start.
func DefaultPreferences() Preferences {
	return Preferences{FontSize: DefaultFontSize}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	out := p
	out.BlockedDomains = slices.Clone(p.BlockedDomains)
	out.DeletedURLs = slices.Clone(p.DeletedURLs)
	if p.TimeoutStrikes != nil {
		out.TimeoutStrikes = make(map[string]int, len(p.TimeoutStrikes))
		for k, v := range p.TimeoutStrikes {
			out.TimeoutStrikes[k] = v
		}
	}
	return out
}

// Blacklist returns the deleted URLs as a normalized set.
func (p Preferences) Blacklist() URLSet {
	return NewURLSet(p.DeletedURLs...)
}

// BlocksURL reports whether link belongs to a blocked domain or one of
// its subdomains.
func (p Preferences) BlocksURL(link string) bool {
	return DomainBlocked(link, p.BlockedDomains)
}

// IsBlocked reports whether domain is already on the block list.
func (p Preferences) IsBlocked(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return slices.Contains(p.BlockedDomains, domain)
}
