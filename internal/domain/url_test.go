package domain

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://x.com/a/ ":   "https://x.com/a",
		"https://x.com/a":     "https://x.com/a",
		"  https://x.com/a/":  "https://x.com/a",
		"https://x.com/a//":   "https://x.com/a/",
		"":                    "",
		"   ":                 "",
		"\thttps://y.org/p\n": "https://y.org/p",
	}

	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestURLSet(t *testing.T) {
	t.Parallel()

	set := NewURLSet("https://a.com/", "", "https://b.com")
	if len(set) != 2 {
		t.Fatalf("expected 2 members, got %d", len(set))
	}
	if !set.Has(" https://a.com") {
		t.Fatalf("expected normalized lookup to match")
	}
	if set.Add("https://b.com/") {
		t.Fatalf("expected duplicate add to report false")
	}
	if !set.Add("https://c.com") {
		t.Fatalf("expected new add to report true")
	}

	other := NewURLSet("https://d.com")
	set.Union(other)
	if !set.Has("https://d.com/") {
		t.Fatalf("expected union member")
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	if got := Domain("https://News.Example.com:8443/x?y=1"); got != "news.example.com" {
		t.Fatalf("unexpected domain: %s", got)
	}
	if got := Domain("not a url"); got != "" {
		t.Fatalf("expected empty domain, got %q", got)
	}
}

func TestArticlePatchApply(t *testing.T) {
	t.Parallel()

	a := Article{ID: "1", Status: StatusInProcess, Notes: "keep"}
	a.ArticleTitle = "Analyzing..."

	patch := ArticlePatch{
		Status:     Ptr(StatusQualified),
		Analysis:   &Analysis{ArticleTitle: "Real", PeopleMentioned: List{"Ann"}},
		AppendChat: &ChatTurn{Question: "q", Answer: "a"},
	}
	patch.Apply(&a)

	if a.Status != StatusQualified || a.ArticleTitle != "Real" || a.Notes != "keep" {
		t.Fatalf("unexpected article after patch: %+v", a)
	}
	if len(a.ChatHistory) != 1 || a.ChatHistory[0].Answer != "a" {
		t.Fatalf("unexpected chat history: %+v", a.ChatHistory)
	}

	patch.Analysis.PeopleMentioned[0] = "Bob"
	if a.PeopleMentioned[0] != "Ann" {
		t.Fatalf("patch analysis must be copied, got %v", a.PeopleMentioned)
	}

	if !(ArticlePatch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestDomainBlocked(t *testing.T) {
	t.Parallel()

	blocked := []string{" Ads.Example ", "tracker.net", ""}
	cases := map[string]bool{
		"https://ads.example/a":         true,
		"https://news.ads.example/a":    true,
		"https://ADS.EXAMPLE:8443/x":    true,
		"https://badads.example/a":      false,
		"https://example/ads.example":   false,
		"https://cdn.tracker.net/p.gif": true,
		"not a url":                     false,
	}
	for link, want := range cases {
		if got := DomainBlocked(link, blocked); got != want {
			t.Fatalf("DomainBlocked(%q) = %v, want %v", link, got, want)
		}
	}

	prefs := Preferences{BlockedDomains: []string{"ads.example"}}
	if !prefs.BlocksURL("https://m.ads.example/story") {
		t.Fatalf("expected subdomain to be blocked by preferences")
	}
}
