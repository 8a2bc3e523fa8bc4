package ports

import (
	"context"
	"time"

	"ArticleDesk/internal/domain"
)

// Candidate is a link discovered by a connector. Ref carries
// connector-specific bookkeeping such as a spreadsheet row number.
type Candidate struct {
	URL string
	Ref int
}

// Connector pulls candidate article links from an upstream source.
type Connector interface {
	Name() string
	Source() domain.Source
	FetchCandidates(ctx context.Context, known domain.URLSet, blocked []string) ([]Candidate, error)
}

// Outcome is the final state of one candidate within a cycle.
type Outcome string

const (
	OutcomeAnalyzed       Outcome = "analyzed"
	OutcomeScrapeFailed   Outcome = "scrape_failed"
	OutcomeAnalysisFailed Outcome = "analysis_failed"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeInterrupted    Outcome = "interrupted"
	OutcomePurged         Outcome = "purged"
	OutcomeSkipped        Outcome = "skipped"
)

// Acknowledger is implemented by connectors that record processing
// results back at the source (spreadsheet status column).
type Acknowledger interface {
	Acknowledge(ctx context.Context, cand Candidate, outcome Outcome)
}

// ArticleStore is the record repository used by the pipeline and the API.
type ArticleStore interface {
	GetAll() []domain.Article
	GetActive() []domain.Article
	Get(id string) (domain.Article, bool)
	Save(ctx context.Context, article domain.Article) (domain.Article, error)
	Update(ctx context.Context, id string, patch domain.ArticlePatch) (bool, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	HardDelete(ctx context.Context, id string) (bool, error)
	Purge(ctx context.Context, id string) (bool, error)
	Preferences() domain.Preferences
	AddTimeoutStrike(url string) (int, error)
	ClearTimeoutStrikes(url string) error
	Blacklist(url string) error
}

// Mirror replicates the full article list to a remote backend.
type Mirror interface {
	Name() string
	Load(ctx context.Context) ([]domain.Article, error)
	Replace(ctx context.Context, articles []domain.Article) error
}

// Scraper fetches and extracts readable text from an article URL.
type Scraper interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// Analyzer extracts a structured JSON payload from article text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]byte, error)
}

// Answerer answers free-form questions about an article.
type Answerer interface {
	Answer(ctx context.Context, articleContext, question string) (string, error)
}

// Grouper clusters article digests by commonality. The reply is a JSON
// object with a "groups" list.
type Grouper interface {
	Group(ctx context.Context, digest string) ([]byte, error)
}

// Profiler describes one person's role in an article in a sentence or two.
type Profiler interface {
	Profile(ctx context.Context, articleContext, person string) (string, error)
}

// Notifier publishes short cycle reports to an operator channel.
type Notifier interface {
	PublishReport(ctx context.Context, text string) error
}

// Scheduler controls when sync cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
