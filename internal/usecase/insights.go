package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ArticleDesk/internal/domain"
)

const (
	maxGroupedArticles = 100
	groupDigestRunes   = 400
	profileContextMax  = 2000
	uncategorized      = "Uncategorized"
)

// ArticleGroup is one theme returned by GroupArticles.
type ArticleGroup struct {
	Title      string   `json:"group_title"`
	ArticleIDs []string `json:"article_ids"`
}

// GroupArticles clusters the active records into themed groups. Only
// the first maxGroupedArticles records are sent to the model.
func (p *Pipeline) GroupArticles(ctx context.Context) ([]ArticleGroup, error) {
	active := p.store.GetActive()
	if len(active) == 0 {
		return []ArticleGroup{}, nil
	}
	if p.grouper == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAnalysis, noAPIKey)
	}
	if len(active) > maxGroupedArticles {
		active = active[:maxGroupedArticles]
	}

	known := make(map[string]bool, len(active))
	var digest strings.Builder
	for _, a := range active {
		known[a.ID] = true
		summary := firstNonEmpty(a.TLDR, a.Summary)
		fmt.Fprintf(&digest, "ID: %s\nTitle: %s\nSummary: %s\n\n", a.ID, a.Title(), truncateRunes(summary, groupDigestRunes))
	}

	payload, err := p.grouper.Group(ctx, digest.String())
	if err != nil {
		return nil, fmt.Errorf("group articles: %w", err)
	}
	return decodeGroups(payload, known)
}

type rawGroups struct {
	Groups []struct {
		Title      string `json:"group_title"`
		ArticleIDs []any  `json:"article_ids"`
	} `json:"groups"`
}

// decodeGroups keeps only ids that name a grouped record and drops
// groups left empty.
func decodeGroups(payload []byte, known map[string]bool) ([]ArticleGroup, error) {
	var raw rawGroups
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	groups := make([]ArticleGroup, 0, len(raw.Groups))
	for _, g := range raw.Groups {
		var ids []string
		for _, v := range g.ArticleIDs {
			id := strings.TrimSpace(fmt.Sprint(v))
			if known[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		title := strings.TrimSpace(g.Title)
		if title == "" {
			title = uncategorized
		}
		groups = append(groups, ArticleGroup{Title: title, ArticleIDs: ids})
	}
	return groups, nil
}

// PersonOverview summarizes one person's role in a record.
func (p *Pipeline) PersonOverview(ctx context.Context, id, person string) (string, error) {
	person = strings.TrimSpace(person)
	if person == "" {
		return "", fmt.Errorf("%w: person name is required", domain.ErrInvalidInput)
	}
	current, ok := p.store.Get(id)
	if !ok {
		return "", domain.ErrNotFound
	}
	if p.profiler == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrAnalysis, noAPIKey)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TL;DR: %s\nKey Points:\n", current.TLDR)
	b.WriteString(strings.Join(current.FullSummaryBullets.Strings(), "\n"))

	overview, err := p.profiler.Profile(ctx, truncateRunes(b.String(), profileContextMax), person)
	if err != nil {
		return "", fmt.Errorf("profile %q on %s: %w", person, id, err)
	}
	return overview, nil
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
