package gsheets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

// Status values written to column B.
const (
	StatusDuplicate = "Duplicate"
	StatusProcessed = "Processed"
	StatusError     = "Error"
	StatusSkipped   = "Skipped"
)

const rowRange = "A:B"

// Row is a new candidate URL and the sheet row it came from (1-based).
type Row struct {
	URL string
	Row int
}

// Stats explains a scan to the operator.
type Stats struct {
	TotalRows  int `json:"total_rows"`
	ValidURLs  int `json:"valid_urls"`
	Duplicates int `json:"duplicates"`
	New        int `json:"new"`
}

// RowReader treats column A of the first worksheet as a work queue and
// column B as its status.
type RowReader struct {
	backend       Backend
	spreadsheetID string
	logger        *slog.Logger

	mu        sync.Mutex
	lastStats Stats
}

var (
	_ ports.Connector    = (*RowReader)(nil)
	_ ports.Acknowledger = (*RowReader)(nil)
)

// NewRowReader wires a backend to one spreadsheet.
func NewRowReader(backend Backend, spreadsheetID string, logger *slog.Logger) *RowReader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RowReader{backend: backend, spreadsheetID: spreadsheetID, logger: logger}
}

// Name implements ports.Connector.
func (r *RowReader) Name() string { return "sheets" }

// Source implements ports.Connector.
func (r *RowReader) Source() domain.Source { return domain.SourceSheet }

// LastStats returns the stats of the most recent scan.
func (r *RowReader) LastStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStats
}

// FetchNewRows returns rows with an empty status whose URL is not in
// existing. Rows repeating a URL seen earlier in the sheet, or a known URL
// that the sheet has already produced, are marked Duplicate.
func (r *RowReader) FetchNewRows(ctx context.Context, existing domain.URLSet) ([]Row, Stats, error) {
	if r.backend == nil {
		return nil, Stats{}, fmt.Errorf("sheets connector: %w", domain.ErrNotAuthenticated)
	}

	values, err := r.backend.Read(ctx, r.spreadsheetID, rowRange)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{TotalRows: len(values)}
	inSheet := domain.NewURLSet()
	var fresh []Row
	for i, cells := range values {
		rowNum := i + 1
		link := cell(cells, 0)
		if cell(cells, 1) != "" || !strings.HasPrefix(link, "http") {
			continue
		}
		stats.ValidURLs++

		first := inSheet.Add(link)
		switch {
		case first && existing.Has(link):
			// the row that produced the existing record
		case !first:
			stats.Duplicates++
			r.UpdateStatus(ctx, rowNum, StatusDuplicate)
		default:
			fresh = append(fresh, Row{URL: link, Row: rowNum})
		}
	}
	stats.New = len(fresh)

	r.mu.Lock()
	r.lastStats = stats
	r.mu.Unlock()

	r.logger.Debug("sheet scanned",
		"rows", stats.TotalRows, "valid", stats.ValidURLs, "duplicates", stats.Duplicates, "new", stats.New)
	return fresh, stats, nil
}

// UpdateStatus writes status into column B of row. Failures are logged.
func (r *RowReader) UpdateStatus(ctx context.Context, row int, status string) {
	if r.backend == nil || row <= 0 {
		return
	}
	rng := fmt.Sprintf("B%d", row)
	if err := r.backend.Write(ctx, r.spreadsheetID, rng, [][]string{{status}}); err != nil {
		r.logger.Warn("sheet status write-back failed", "row", row, "status", status, "error", err)
	}
}

// FetchCandidates implements ports.Connector. Rows on blocked domains are
// marked Skipped and not returned.
func (r *RowReader) FetchCandidates(ctx context.Context, known domain.URLSet, blocked []string) ([]ports.Candidate, error) {
	rows, _, err := r.FetchNewRows(ctx, known)
	if err != nil {
		return nil, err
	}

	out := make([]ports.Candidate, 0, len(rows))
	for _, row := range rows {
		if domain.DomainBlocked(row.URL, blocked) {
			r.UpdateStatus(ctx, row.Row, StatusSkipped)
			continue
		}
		out = append(out, ports.Candidate{URL: row.URL, Ref: row.Row})
	}
	return out, nil
}

// Acknowledge implements ports.Acknowledger. Timed-out and interrupted
// rows stay empty; neither outcome is final.
func (r *RowReader) Acknowledge(ctx context.Context, cand ports.Candidate, outcome ports.Outcome) {
	var status string
	switch outcome {
	case ports.OutcomeAnalyzed:
		status = StatusProcessed
	case ports.OutcomeScrapeFailed, ports.OutcomeAnalysisFailed:
		status = StatusError
	case ports.OutcomePurged, ports.OutcomeSkipped:
		status = StatusSkipped
	default:
		return
	}
	r.UpdateStatus(ctx, cand.Ref, status)
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
