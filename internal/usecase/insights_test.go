package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ArticleDesk/internal/domain"
)

func TestGroupArticles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	long := strings.Repeat("x", 500)
	for _, a := range []domain.Article{
		{ID: "a1", URL: "https://a.com/1", Analysis: domain.Analysis{ArticleTitle: "PPP loans", TLDR: "Loan fraud."}},
		{ID: "a2", URL: "https://a.com/2", Analysis: domain.Analysis{ArticleTitle: "Clinic billing", Summary: long}},
		{ID: "a3", URL: "https://a.com/3", Status: domain.StatusDeleted},
	} {
		if _, err := h.store.Save(ctx, a); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	h.insights.groups = `{"groups": [
		{"group_title": "PPP Loan Fraud", "article_ids": ["a1", "a3", "ghost"]},
		{"group_title": "", "article_ids": ["a2"]},
		{"group_title": "Empty", "article_ids": []}
	]}`

	groups, err := h.pipeline.GroupArticles(ctx)
	if err != nil {
		t.Fatalf("GroupArticles: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", groups)
	}
	if groups[0].Title != "PPP Loan Fraud" || len(groups[0].ArticleIDs) != 1 || groups[0].ArticleIDs[0] != "a1" {
		t.Fatalf("unknown and deleted ids must be dropped: %+v", groups[0])
	}
	if groups[1].Title != uncategorized {
		t.Fatalf("blank title must fall back: %+v", groups[1])
	}

	digest := h.insights.lastDigest
	if !strings.Contains(digest, "ID: a1\nTitle: PPP loans\nSummary: Loan fraud.") {
		t.Fatalf("unexpected digest: %q", digest)
	}
	if strings.Contains(digest, "a3") || !strings.Contains(digest, strings.Repeat("x", 400)+"...") || strings.Contains(digest, strings.Repeat("x", 401)) {
		t.Fatalf("digest must skip deleted records and truncate summaries: %q", digest)
	}
}

func TestGroupArticlesRejectsMalformedReply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	if _, err := h.store.Save(ctx, domain.Article{ID: "a1", URL: "https://a.com/1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	h.insights.groups = "not json"

	if _, err := h.pipeline.GroupArticles(ctx); !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestGroupArticlesWithoutRecordsOrModel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, DefaultConfig())

	groups, err := h.pipeline.GroupArticles(ctx)
	if err != nil || len(groups) != 0 {
		t.Fatalf("empty store must give no groups: %v %+v", err, groups)
	}

	if _, err := h.store.Save(ctx, domain.Article{ID: "a1", URL: "https://a.com/1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	bare := NewPipeline(PipelineDeps{Store: h.store}, DefaultConfig())
	if _, err := bare.GroupArticles(ctx); !errors.Is(err, domain.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
}

func TestPersonOverview(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	saved, err := h.store.Save(ctx, domain.Article{URL: "https://a.com/1", Analysis: domain.Analysis{
		TLDR:               "Clinic billed for ghost patients.",
		FullSummaryBullets: domain.List{"Ann wrote the story.", "Bob ran the clinic."},
	}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := h.pipeline.PersonOverview(ctx, saved.ID, " Ann ")
	if err != nil {
		t.Fatalf("PersonOverview: %v", err)
	}
	if got != "Ann reported the story." || h.insights.lastPerson != "Ann" {
		t.Fatalf("unexpected overview %q for %q", got, h.insights.lastPerson)
	}
	want := "TL;DR: Clinic billed for ghost patients.\nKey Points:\nAnn wrote the story.\nBob ran the clinic."
	if h.insights.lastContext != want {
		t.Fatalf("unexpected context: %q", h.insights.lastContext)
	}

	if _, err := h.pipeline.PersonOverview(ctx, saved.ID, "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := h.pipeline.PersonOverview(ctx, "missing", "Ann"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
