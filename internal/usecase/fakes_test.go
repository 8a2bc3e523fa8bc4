package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
	"ArticleDesk/internal/store"
)

const goodPayload = `{"article_title": "Ponzi collapse", "tl_dr": "Investors lost savings.", "fraud_indicator": "high", "people_mentioned": ["Ann"]}`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeConnector struct {
	name  string
	urls  []string
	err   error
	calls int

	mu    sync.Mutex
	acked map[string]ports.Outcome
}

func (c *fakeConnector) Name() string          { return c.name }
func (c *fakeConnector) Source() domain.Source { return domain.SourceSheet }

func (c *fakeConnector) FetchCandidates(context.Context, domain.URLSet, []string) ([]ports.Candidate, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([]ports.Candidate, len(c.urls))
	for i, u := range c.urls {
		out[i] = ports.Candidate{URL: u, Ref: i + 2}
	}
	return out, nil
}

func (c *fakeConnector) Acknowledge(_ context.Context, cand ports.Candidate, outcome ports.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acked == nil {
		c.acked = map[string]ports.Outcome{}
	}
	c.acked[cand.URL] = outcome
}

// fakeScraper returns text derived from the URL. URLs listed in failing
// error out; URLs in slow advance the clock past the item budget.
type fakeScraper struct {
	failing map[string]bool
	slow    map[string]bool
	clock   *fakeClock
	budget  time.Duration
}

func (s *fakeScraper) Fetch(_ context.Context, url string) (domain.Page, error) {
	if s.slow[url] {
		s.clock.Advance(2 * s.budget)
	}
	if s.failing[url] {
		return domain.Page{}, fmt.Errorf("%w: status 404", domain.ErrFetch)
	}
	return domain.Page{Title: "Page " + url, Text: "text of " + url}, nil
}

// fakeAnalyzer maps article text to payloads; unknown text gets goodPayload.
type fakeAnalyzer struct {
	payloads map[string]string
	err      error
	calls    int
}

func (a *fakeAnalyzer) Analyze(_ context.Context, text string) ([]byte, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	if p, ok := a.payloads[text]; ok {
		return []byte(p), nil
	}
	return []byte(goodPayload), nil
}

type fakeAnswerer struct {
	lastContext string
}

func (a *fakeAnswerer) Answer(_ context.Context, articleContext, question string) (string, error) {
	a.lastContext = articleContext
	return "answer to " + question, nil
}

// fakeInsights groups and profiles with canned replies.
type fakeInsights struct {
	groups      string
	lastDigest  string
	lastContext string
	lastPerson  string
}

func (f *fakeInsights) Group(_ context.Context, digest string) ([]byte, error) {
	f.lastDigest = digest
	return []byte(f.groups), nil
}

func (f *fakeInsights) Profile(_ context.Context, articleContext, person string) (string, error) {
	f.lastContext = articleContext
	f.lastPerson = person
	return person + " reported the story.", nil
}

type fakeNotifier struct {
	reports []string
	err     error
}

func (n *fakeNotifier) PublishReport(_ context.Context, text string) error {
	n.reports = append(n.reports, text)
	return n.err
}

type harness struct {
	store    *store.Store
	clock    *fakeClock
	scraper  *fakeScraper
	analyzer *fakeAnalyzer
	answerer *fakeAnswerer
	insights *fakeInsights
	pipeline *Pipeline
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	st, err := store.Open(t.TempDir(), store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if cfg.ItemBudget == 0 {
		cfg.ItemBudget = time.Minute
	}

	h := &harness{
		store:    st,
		clock:    newFakeClock(),
		analyzer: &fakeAnalyzer{payloads: map[string]string{}},
		answerer: &fakeAnswerer{},
		insights: &fakeInsights{},
	}
	h.scraper = &fakeScraper{failing: map[string]bool{}, slow: map[string]bool{}, clock: h.clock, budget: cfg.ItemBudget}
	h.pipeline = NewPipeline(PipelineDeps{
		Store:    st,
		Scraper:  h.scraper,
		Analyzer: h.analyzer,
		Answerer: h.answerer,
		Grouper:  h.insights,
		Profiler: h.insights,
		Clock:    h.clock.Now,
	}, cfg)
	return h
}

func (h *harness) byURL(url string) (domain.Article, bool) {
	for _, a := range h.store.GetAll() {
		if a.URL == url {
			return a, true
		}
	}
	return domain.Article{}, false
}

var errBoom = errors.New("boom")

type scraperFunc func(ctx context.Context, url string) (domain.Page, error)

func (f scraperFunc) Fetch(ctx context.Context, url string) (domain.Page, error) {
	return f(ctx, url)
}

type analyzerFunc func(ctx context.Context, text string) ([]byte, error)

func (f analyzerFunc) Analyze(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}
