package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ArticleDesk/internal/analysis"
	"ArticleDesk/internal/domain"
)

const manualEntryPrefix = "Manual Entry "

// SubmitURL scrapes and analyzes a URL pasted by a reviewer. Manual
// submissions ignore the blacklist but never duplicate an active record.
// A page that cannot be fetched is still saved, as an Error record.
func (p *Pipeline) SubmitURL(ctx context.Context, raw string) (domain.Article, error) {
	url := domain.NormalizeURL(raw)
	if url == "" {
		return domain.Article{}, fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	for _, a := range p.store.GetActive() {
		if domain.NormalizeURL(a.URL) == url {
			return a, domain.ErrDuplicate
		}
	}

	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemBudget)
	defer cancel()

	record := domain.Article{URL: url, Source: domain.SourceURL, Status: domain.StatusNotStarted}

	page, err := p.scraper.Fetch(itemCtx, url)
	if err != nil {
		p.logger.Info("manual url could not be fetched", "url", url, "error", err)
		record.Status = domain.StatusError
		record.ArticleTitle = linkErrorTitle
		record.TLDR = analysis.BadLinkMarker
		record.FraudIndicator = domain.FraudUnknown
		record.LastError = err.Error()
		return p.store.Save(ctx, record)
	}

	p.analyzeInto(itemCtx, &record, page.Text)
	if record.ArticleTitle == "" {
		record.ArticleTitle = firstNonEmpty(page.Title, unknownTitle)
	}
	return p.store.Save(ctx, record)
}

// SubmitText analyzes text pasted by a reviewer. The record gets a
// synthetic URL stamped with the submission time.
func (p *Pipeline) SubmitText(ctx context.Context, text string) (domain.Article, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Article{}, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}

	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemBudget)
	defer cancel()

	record := domain.Article{
		URL:    manualEntryPrefix + p.now().Format("2006-01-02 15:04:05"),
		Source: domain.SourceText,
		Status: domain.StatusNotStarted,
	}
	p.analyzeInto(itemCtx, &record, text)
	if record.ArticleTitle == "" {
		record.ArticleTitle = unknownTitle
	}
	return p.store.Save(ctx, record)
}

// Reanalyze scrapes the record's URL again and merges the fresh analysis
// over the stored one.
func (p *Pipeline) Reanalyze(ctx context.Context, id string) (domain.Article, error) {
	current, ok := p.store.Get(id)
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	if strings.HasPrefix(current.URL, manualEntryPrefix) {
		return current, fmt.Errorf("%w: pasted entries need text to reanalyze", domain.ErrInvalidInput)
	}

	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemBudget)
	defer cancel()

	page, err := p.scraper.Fetch(itemCtx, current.URL)
	if err != nil {
		p.update(ctx, id, domain.ArticlePatch{LastError: domain.Ptr(err.Error())})
		return current, fmt.Errorf("reanalyze %s: %w", id, err)
	}
	return p.reanalyze(ctx, itemCtx, current, page.Text)
}

// ReanalyzeText merges an analysis of reviewer-provided text into the record.
func (p *Pipeline) ReanalyzeText(ctx context.Context, id, text string) (domain.Article, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Article{}, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	current, ok := p.store.Get(id)
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}

	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemBudget)
	defer cancel()
	return p.reanalyze(ctx, itemCtx, current, text)
}

func (p *Pipeline) reanalyze(ctx, itemCtx context.Context, current domain.Article, text string) (domain.Article, error) {
	fresh, err := p.analyze(itemCtx, text)
	if err != nil {
		p.update(ctx, current.ID, domain.ArticlePatch{LastError: domain.Ptr(errorLabel(err))})
		return current, fmt.Errorf("reanalyze %s: %w", current.ID, err)
	}

	merged := analysis.Merge(current.Analysis, fresh)
	if _, err := p.store.Update(ctx, current.ID, domain.ArticlePatch{
		Analysis:  &merged,
		LastError: domain.Ptr(""),
	}); err != nil {
		return current, fmt.Errorf("save reanalysis %s: %w", current.ID, err)
	}

	updated, _ := p.store.Get(current.ID)
	return updated, nil
}

// Ask answers a reviewer question about one record and appends the
// exchange to its chat history.
func (p *Pipeline) Ask(ctx context.Context, id, question string) (domain.ChatTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ChatTurn{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	current, ok := p.store.Get(id)
	if !ok {
		return domain.ChatTurn{}, domain.ErrNotFound
	}
	if p.answerer == nil {
		return domain.ChatTurn{}, fmt.Errorf("%w: %s", domain.ErrAnalysis, noAPIKey)
	}

	answer, err := p.answerer.Answer(ctx, articleContext(current), question)
	if err != nil {
		return domain.ChatTurn{}, fmt.Errorf("answer question on %s: %w", id, err)
	}

	turn := domain.ChatTurn{Question: question, Answer: answer}
	if _, err := p.store.Update(ctx, id, domain.ArticlePatch{AppendChat: &turn}); err != nil {
		return turn, fmt.Errorf("save chat turn: %w", err)
	}
	return turn, nil
}

// analyzeInto runs analysis and writes either the result or the failure
// label into record.
func (p *Pipeline) analyzeInto(ctx context.Context, record *domain.Article, text string) {
	result, err := p.analyze(ctx, text)
	if err != nil {
		record.LastError = errorLabel(err)
		return
	}
	record.Analysis = result
}

func (p *Pipeline) analyze(ctx context.Context, text string) (domain.Analysis, error) {
	if p.analyzer == nil {
		return domain.Analysis{}, errNoAnalyzer
	}
	payload, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		return domain.Analysis{}, err
	}
	return analysis.Decode(payload)
}

var errNoAnalyzer = fmt.Errorf("%w: %s", domain.ErrAnalysis, noAPIKey)

// errorLabel is the last_error text shown to reviewers.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, errNoAnalyzer):
		return noAPIKey
	case errors.Is(err, domain.ErrParse):
		return parseErrorMarker
	default:
		return err.Error()
	}
}

func articleContext(a domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nURL: %s\n", a.Title(), a.URL)
	if a.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", a.Date)
	}
	if a.FraudIndicator != "" {
		fmt.Fprintf(&b, "Fraud indicator: %s\n", a.FraudIndicator)
	}
	if a.TLDR != "" {
		fmt.Fprintf(&b, "TL;DR: %s\n", a.TLDR)
	}
	sections := []struct {
		name  string
		items domain.List
	}{
		{"Summary", a.FullSummaryBullets},
		{"History", a.HistoryOverview},
		{"People", a.PeopleMentioned},
		{"Organizations", a.OrganizationsInvolved},
		{"Allegations", a.Allegations},
		{"Current situation", a.CurrentSituation},
		{"Next steps", a.NextSteps},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", s.name)
		for _, item := range s.items.Strings() {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	if a.Notes != "" {
		fmt.Fprintf(&b, "Reviewer notes: %s\n", a.Notes)
	}
	return b.String()
}
