package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"ArticleDesk/internal/analysis"
	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

const (
	placeholderTitle = "Analyzing..."
	linkErrorTitle   = "Unknown - Link Error"
	unknownTitle     = "Unknown Title"
	noAPIKey         = "No API Key"
	parseErrorMarker = "JSON Parse Error"

	ackTimeout = 15 * time.Second
)

var defaultIgnorable = []string{"favicon", "/wp-content/", "/static/", "/assets/", "/cdn-cgi/"}

// Metrics receives pipeline observations.
type Metrics interface {
	CycleFinished(connector, result string)
	CandidateOutcome(connector string, outcome ports.Outcome)
	ItemDuration(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) CycleFinished(string, string)           {}
func (noopMetrics) CandidateOutcome(string, ports.Outcome) {}
func (noopMetrics) ItemDuration(time.Duration)             {}

// Config bounds the work done by one cycle.
type Config struct {
	MaxPerCycle   int
	CycleDeadline time.Duration
	ItemBudget    time.Duration
	// MaxTimeoutStrikes blacklists a URL after that many timeouts; 0 disables.
	MaxTimeoutStrikes int
	// IgnorePatterns are extra substrings that mark a link as not an article.
	IgnorePatterns []string
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxPerCycle:       10,
		CycleDeadline:     15 * time.Minute,
		ItemBudget:        60 * time.Second,
		MaxTimeoutStrikes: 3,
	}
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store    ports.ArticleStore
	Scraper  ports.Scraper
	Analyzer ports.Analyzer
	Answerer ports.Answerer
	Grouper  ports.Grouper
	Profiler ports.Profiler
	Metrics  Metrics
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Pipeline implements the article-ingestion workflow.
type Pipeline struct {
	store    ports.ArticleStore
	scraper  ports.Scraper
	analyzer ports.Analyzer
	answerer ports.Answerer
	grouper  ports.Grouper
	profiler ports.Profiler
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
	ignore   []string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg Config) *Pipeline {
	defaults := DefaultConfig()
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = defaults.MaxPerCycle
	}
	if cfg.ItemBudget <= 0 {
		cfg.ItemBudget = defaults.ItemBudget
	}

	p := &Pipeline{
		store:    deps.Store,
		scraper:  deps.Scraper,
		analyzer: deps.Analyzer,
		answerer: deps.Answerer,
		grouper:  deps.Grouper,
		profiler: deps.Profiler,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Clock,
		cfg:      cfg,
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.now == nil {
		p.now = time.Now
	}
	for _, pattern := range append(append([]string(nil), defaultIgnorable...), cfg.IgnorePatterns...) {
		if pattern = strings.ToLower(strings.TrimSpace(pattern)); pattern != "" {
			p.ignore = append(p.ignore, pattern)
		}
	}
	return p
}

// CycleOptions tunes a single cycle.
type CycleOptions struct {
	// AcceptStatus is assigned after a successful analysis. Defaults to Not Started.
	AcceptStatus domain.Status
}

// ItemResult is the fate of one candidate.
type ItemResult struct {
	URL       string        `json:"url"`
	ArticleID string        `json:"article_id,omitempty"`
	Outcome   ports.Outcome `json:"outcome"`
	Err       string        `json:"error,omitempty"`
}

// CycleReport summarizes one connector cycle.
type CycleReport struct {
	Connector   string        `json:"connector"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Discovered  int           `json:"discovered"`
	Excluded    int           `json:"excluded"`
	Deferred    int           `json:"deferred"`
	Processed   int           `json:"processed"`
	Analyzed    int           `json:"analyzed"`
	Failed      int           `json:"failed"`
	TimedOut    int           `json:"timed_out"`
	Interrupted int           `json:"interrupted"`
	Purged      int           `json:"purged"`
	Items       []ItemResult  `json:"items"`
}

func (r *CycleReport) add(item ItemResult) {
	r.Processed++
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case ports.OutcomeAnalyzed:
		r.Analyzed++
	case ports.OutcomeScrapeFailed, ports.OutcomeAnalysisFailed:
		r.Failed++
	case ports.OutcomeTimedOut:
		r.TimedOut++
	case ports.OutcomeInterrupted:
		r.Interrupted++
	case ports.OutcomePurged:
		r.Purged++
	}
}

// RunCycle pulls candidates from conn and processes the new ones one at a
// time. A failing candidate never aborts the cycle; only connector errors
// and local persistence failures are returned.
func (p *Pipeline) RunCycle(ctx context.Context, conn ports.Connector, opts CycleOptions) (report CycleReport, err error) {
	report = CycleReport{Connector: conn.Name(), StartedAt: p.now()}
	defer func() { report.Duration = p.now().Sub(report.StartedAt) }()

	if opts.AcceptStatus == "" {
		opts.AcceptStatus = domain.StatusNotStarted
	}
	if p.cfg.CycleDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.CycleDeadline)
		defer cancel()
	}

	excluded := p.exclusionSet()
	prefs := p.store.Preferences()

	candidates, err := conn.FetchCandidates(ctx, excluded, prefs.BlockedDomains)
	if err != nil {
		p.metrics.CycleFinished(conn.Name(), "error")
		return report, fmt.Errorf("fetch candidates from %s: %w", conn.Name(), err)
	}
	report.Discovered = len(candidates)

	ack, _ := conn.(ports.Acknowledger)
	seen := domain.NewURLSet()
	work := make([]ports.Candidate, 0, min(len(candidates), p.cfg.MaxPerCycle))
	for _, cand := range candidates {
		cand.URL = domain.NormalizeURL(cand.URL)
		if cand.URL == "" || excluded.Has(cand.URL) || !seen.Add(cand.URL) {
			report.Excluded++
			continue
		}
		if p.ignorable(cand.URL) || prefs.BlocksURL(cand.URL) {
			report.Excluded++
			p.acknowledge(ctx, ack, conn.Name(), cand, ports.OutcomeSkipped)
			continue
		}
		if len(work) >= p.cfg.MaxPerCycle {
			report.Deferred++
			continue
		}
		work = append(work, cand)
	}

	p.logger.Debug("cycle candidates",
		"connector", conn.Name(), "discovered", report.Discovered, "new", len(work), "excluded", report.Excluded)

	for i, cand := range work {
		if ctx.Err() != nil {
			report.Deferred += len(work) - i
			p.logger.Warn("cycle stopped early", "connector", conn.Name(), "deferred", len(work)-i, "cause", ctx.Err())
			break
		}

		item, procErr := p.process(ctx, conn.Source(), cand, opts.AcceptStatus)
		if procErr != nil {
			p.metrics.CycleFinished(conn.Name(), "error")
			return report, procErr
		}
		report.add(item)
		p.acknowledge(ctx, ack, conn.Name(), cand, item.Outcome)
	}

	p.metrics.CycleFinished(conn.Name(), "ok")
	p.logger.Info("cycle finished",
		"connector", conn.Name(),
		"processed", report.Processed,
		"analyzed", report.Analyzed,
		"failed", report.Failed,
		"timed_out", report.TimedOut,
		"interrupted", report.Interrupted,
		"purged", report.Purged,
		"deferred", report.Deferred)
	return report, nil
}

// process walks one candidate through placeholder, scrape, analyze and
// persist. The returned error is reserved for local storage failures.
func (p *Pipeline) process(ctx context.Context, source domain.Source, cand ports.Candidate, accept domain.Status) (ItemResult, error) {
	started := p.now()
	defer func() { p.metrics.ItemDuration(p.now().Sub(started)) }()

	result := ItemResult{URL: cand.URL}
	placeholder, err := p.store.Save(ctx, domain.Article{
		URL:      cand.URL,
		Status:   domain.StatusInProcess,
		Source:   source,
		Analysis: domain.Analysis{ArticleTitle: placeholderTitle},
	})
	if err != nil {
		return result, fmt.Errorf("persist placeholder for %s: %w", cand.URL, err)
	}
	result.ArticleID = placeholder.ID
	log := p.logger.With("url", cand.URL, "id", placeholder.ID)

	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemBudget)
	defer cancel()

	page, err := p.scraper.Fetch(itemCtx, cand.URL)
	if stopped, ok := p.halted(ctx, itemCtx, result, started, ""); ok {
		return stopped, nil
	}
	if err != nil {
		log.Debug("scrape failed", "error", err)
		p.update(ctx, placeholder.ID, domain.ArticlePatch{
			Status:       domain.Ptr(domain.StatusError),
			LastError:    domain.Ptr(err.Error()),
			ArticleTitle: domain.Ptr(linkErrorTitle),
		})
		return failed(result, ports.OutcomeScrapeFailed, err.Error()), nil
	}

	interim := domain.ArticlePatch{Status: domain.Ptr(domain.StatusNotStarted)}
	if page.Title != "" {
		interim.ArticleTitle = domain.Ptr(page.Title)
	}

	if p.analyzer == nil {
		interim.LastError = domain.Ptr(noAPIKey)
		p.update(ctx, placeholder.ID, interim)
		return failed(result, ports.OutcomeAnalysisFailed, noAPIKey), nil
	}

	payload, err := p.analyzer.Analyze(itemCtx, page.Text)
	if stopped, ok := p.halted(ctx, itemCtx, result, started, page.Title); ok {
		return stopped, nil
	}
	if err != nil {
		log.Debug("analysis failed", "error", err)
		interim.LastError = domain.Ptr(err.Error())
		p.update(ctx, placeholder.ID, interim)
		return failed(result, ports.OutcomeAnalysisFailed, err.Error()), nil
	}

	decoded, err := analysis.Decode(payload)
	if err != nil {
		log.Debug("analysis payload rejected", "error", err)
		interim.LastError = domain.Ptr(parseErrorMarker)
		p.update(ctx, placeholder.ID, interim)
		return failed(result, ports.OutcomeAnalysisFailed, parseErrorMarker), nil
	}

	if analysis.IsBadLink(decoded) {
		if _, err := p.store.Purge(ctx, placeholder.ID); err != nil {
			return result, fmt.Errorf("purge bad link %s: %w", cand.URL, err)
		}
		log.Debug("bad link purged")
		result.Outcome = ports.OutcomePurged
		return result, nil
	}

	if decoded.ArticleTitle == "" {
		decoded.ArticleTitle = firstNonEmpty(page.Title, unknownTitle)
	}
	p.update(ctx, placeholder.ID, domain.ArticlePatch{
		Analysis:  &decoded,
		Status:    domain.Ptr(accept),
		LastError: domain.Ptr(""),
	})
	if err := p.store.ClearTimeoutStrikes(cand.URL); err != nil {
		log.Warn("clear timeout strikes", "error", err)
	}

	result.Outcome = ports.OutcomeAnalyzed
	return result, nil
}

// abandon hard-deletes a timed-out placeholder and counts a strike against
// the URL, blacklisting it once the strike limit is reached.
func (p *Pipeline) abandon(ctx context.Context, result ItemResult, started time.Time) ItemResult {
	elapsed := p.now().Sub(started)
	log := p.logger.With("url", result.URL, "elapsed", elapsed)

	if _, err := p.store.HardDelete(ctx, result.ArticleID); err != nil {
		log.Error("drop timed out placeholder", "error", err)
	}

	strikes, err := p.store.AddTimeoutStrike(result.URL)
	if err != nil {
		log.Warn("record timeout strike", "error", err)
	}
	if p.cfg.MaxTimeoutStrikes > 0 && strikes >= p.cfg.MaxTimeoutStrikes {
		if err := p.store.Blacklist(result.URL); err != nil {
			log.Warn("blacklist slow url", "error", err)
		} else {
			log.Info("url blacklisted after repeated timeouts", "strikes", strikes)
		}
	}

	log.Debug("item timed out", "strikes", strikes)
	return failed(result, ports.OutcomeTimedOut, fmt.Sprintf("%v after %s", domain.ErrTimeout, elapsed.Round(time.Millisecond)))
}

// halted checks an item after each blocking call. A cancelled cycle
// context interrupts the item; only the item's own budget running out
// counts as a timeout.
func (p *Pipeline) halted(ctx, itemCtx context.Context, result ItemResult, started time.Time, title string) (ItemResult, bool) {
	if err := ctx.Err(); err != nil {
		return p.interrupt(ctx, result, title, err), true
	}
	if itemCtx.Err() != nil || p.now().Sub(started) > p.cfg.ItemBudget {
		return p.abandon(ctx, result, started), true
	}
	return result, false
}

// interrupt leaves the placeholder as a retryable Not Started record. No
// timeout strike is counted.
func (p *Pipeline) interrupt(ctx context.Context, result ItemResult, title string, cause error) ItemResult {
	detail := fmt.Sprintf("interrupted: %v", cause)
	p.update(context.WithoutCancel(ctx), result.ArticleID, domain.ArticlePatch{
		Status:       domain.Ptr(domain.StatusNotStarted),
		ArticleTitle: domain.Ptr(firstNonEmpty(title, unknownTitle)),
		LastError:    domain.Ptr(detail),
	})
	p.logger.Info("item interrupted", "url", result.URL, "id", result.ArticleID, "cause", cause)
	return failed(result, ports.OutcomeInterrupted, detail)
}

func (p *Pipeline) update(ctx context.Context, id string, patch domain.ArticlePatch) {
	if _, err := p.store.Update(ctx, id, patch); err != nil {
		p.logger.Error("update article", "id", id, "error", err)
	}
}

func (p *Pipeline) acknowledge(ctx context.Context, ack ports.Acknowledger, connector string, cand ports.Candidate, outcome ports.Outcome) {
	p.metrics.CandidateOutcome(connector, outcome)
	if ack == nil {
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	ack.Acknowledge(ackCtx, cand, outcome)
}

// exclusionSet is every active URL plus the permanent blacklist.
func (p *Pipeline) exclusionSet() domain.URLSet {
	set := domain.NewURLSet()
	for _, a := range p.store.GetActive() {
		set.Add(a.URL)
	}
	return set.Union(p.store.Preferences().Blacklist())
}

func (p *Pipeline) ignorable(url string) bool {
	lower := strings.ToLower(url)
	for _, pattern := range p.ignore {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func failed(result ItemResult, outcome ports.Outcome, detail string) ItemResult {
	result.Outcome = outcome
	result.Err = detail
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
