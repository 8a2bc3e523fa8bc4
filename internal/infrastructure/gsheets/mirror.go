package gsheets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

// MirrorTab is the worksheet that holds the replicated store.
const MirrorTab = "Articles_DB"

const previewLimit = 200

var mirrorHeader = []string{"id", "json", "title", "tl_dr"}

// Mirror replicates the article list into one worksheet, one record per row.
// Rows that Load could not decode are written back untouched by Replace.
type Mirror struct {
	backend       Backend
	spreadsheetID string

	mu   sync.Mutex
	kept [][]string
}

var _ ports.Mirror = (*Mirror)(nil)

// NewMirror wires a backend to the spreadsheet holding the mirror tab.
func NewMirror(backend Backend, spreadsheetID string) *Mirror {
	return &Mirror{backend: backend, spreadsheetID: spreadsheetID}
}

// Name implements ports.Mirror.
func (m *Mirror) Name() string { return "sheets" }

// Load reads every row below the header. Rows whose JSON does not decode
// are left out of the result but kept for the next Replace.
func (m *Mirror) Load(ctx context.Context) ([]domain.Article, error) {
	if err := m.ensure(ctx); err != nil {
		return nil, err
	}

	rows, err := m.backend.Read(ctx, m.spreadsheetID, MirrorTab+"!A:D")
	if err != nil {
		return nil, err
	}

	var (
		articles []domain.Article
		kept     [][]string
	)
	for i, row := range rows {
		if i == 0 || len(row) < 2 || row[1] == "" {
			continue
		}
		var article domain.Article
		if err := json.Unmarshal([]byte(row[1]), &article); err != nil {
			kept = append(kept, append([]string(nil), row...))
			continue
		}
		if article.ID == "" {
			article.ID = row[0]
		}
		if article.ID == "" {
			continue
		}
		articles = append(articles, article)
	}

	m.mu.Lock()
	m.kept = kept
	m.mu.Unlock()
	return articles, nil
}

// Replace clears the tab and writes the header plus one row per article.
func (m *Mirror) Replace(ctx context.Context, articles []domain.Article) error {
	if err := m.ensure(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	kept := m.kept
	m.mu.Unlock()

	rows := make([][]string, 0, len(articles)+len(kept)+1)
	rows = append(rows, mirrorHeader)
	ids := make(map[string]bool, len(articles))
	for _, article := range articles {
		payload, err := json.Marshal(article)
		if err != nil {
			return fmt.Errorf("encode article %s: %w", article.ID, err)
		}
		ids[article.ID] = true
		rows = append(rows, []string{article.ID, string(payload), article.Title(), preview(article.TLDR)})
	}
	for _, row := range kept {
		if row[0] != "" && ids[row[0]] {
			continue
		}
		rows = append(rows, row)
	}

	if err := m.backend.Clear(ctx, m.spreadsheetID, MirrorTab+"!A:D"); err != nil {
		return err
	}
	return m.backend.Write(ctx, m.spreadsheetID, MirrorTab+"!A1", rows)
}

func (m *Mirror) ensure(ctx context.Context) error {
	if m.backend == nil {
		return fmt.Errorf("sheets mirror: %w", domain.ErrNotAuthenticated)
	}
	created, err := m.backend.EnsureTab(ctx, m.spreadsheetID, MirrorTab)
	if err != nil {
		return err
	}
	if created {
		return m.backend.Write(ctx, m.spreadsheetID, MirrorTab+"!A1", [][]string{mirrorHeader})
	}
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit]) + "..."
}
