package domain

import "encoding/json"

// Status is the reviewer-facing lifecycle state of an article record.
type Status string

const (
	StatusNotStarted   Status = "Not Started"
	StatusInProcess    Status = "In Process"
	StatusQualified    Status = "Qualified"
	StatusDisqualified Status = "Disqualified"
	StatusError        Status = "Error"
	StatusCompleted    Status = "Completed"
	StatusArchived     Status = "Archived"
	// StatusDeleted is a soft-delete marker; the record stays in the store.
	StatusDeleted Status = "Deleted"
)

var validStatuses = map[Status]bool{
	StatusNotStarted:   true,
	StatusInProcess:    true,
	StatusQualified:    true,
	StatusDisqualified: true,
	StatusError:        true,
	StatusCompleted:    true,
	StatusArchived:     true,
	StatusDeleted:      true,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// Active is false only for soft-deleted records.
func (s Status) Active() bool {
	return s != StatusDeleted
}

// Source tags where a record came from. Informational only.
type Source string

const (
	SourceEmail     Source = "email"
	SourceSheet     Source = "sheet"
	SourceURL       Source = "url"
	SourceText      Source = "text"
	SourceDashboard Source = "manual_dashboard"
)

// FraudLevel is the coarse risk grade produced by analysis.
type FraudLevel string

const (
	FraudHigh    FraudLevel = "High"
	FraudMedium  FraudLevel = "Medium"
	FraudLow     FraudLevel = "Low"
	FraudUnknown FraudLevel = "Unknown"
)

// Rank orders fraud levels for sorting; unknown grades sort lowest.
func (f FraudLevel) Rank() int {
	switch f {
	case FraudHigh:
		return 3
	case FraudMedium:
		return 2
	case FraudLow:
		return 1
	default:
		return 0
	}
}

// List is a list-typed analysis field. Items are usually strings but
// some fields (prevention strategies) carry objects.
type List []any

// MarshalJSON always emits an array, never null.
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]any(l))
}

// UnmarshalJSON accepts an array, null, or a single value which is
// wrapped into a one-item list. Older records stored some fields as
// plain strings.
func (l *List) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = List{}
	case []any:
		*l = List(t)
	case string:
		if t == "" {
			*l = List{}
		} else {
			*l = List{t}
		}
	default:
		*l = List{t}
	}
	return nil
}

// Strings renders every item as text; objects are JSON encoded.
func (l List) Strings() []string {
	out := make([]string, 0, len(l))
	for _, item := range l {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		default:
			raw, err := json.Marshal(t)
			if err != nil {
				continue
			}
			out = append(out, string(raw))
		}
	}
	return out
}

// Analysis is the canonical structured payload extracted by the LLM.
type Analysis struct {
	ArticleTitle          string     `json:"article_title,omitempty"`
	Date                  string     `json:"date,omitempty"`
	DateVerification      string     `json:"date_verification,omitempty"`
	FraudIndicator        FraudLevel `json:"fraud_indicator,omitempty"`
	TLDR                  string     `json:"tl_dr,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	FullSummaryBullets    List       `json:"full_summary_bullets"`
	HistoryOverview       List       `json:"history_overview"`
	PeopleMentioned       List       `json:"people_mentioned"`
	OrganizationsInvolved List       `json:"organizations_involved"`
	Allegations           List       `json:"allegations"`
	CurrentSituation      List       `json:"current_situation"`
	NextSteps             List       `json:"next_steps"`
	PreventionStrategies  List       `json:"prevention_strategies"`
	DiscoveryQuestions    List       `json:"discovery_questions"`
}

// ChatTurn is one question/answer exchange about an article.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Article is the central record reviewed on the dashboard.
type Article struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Status  Status    `json:"status"`
	AddedAt Timestamp `json:"added_at"`
	Source  Source    `json:"source,omitempty"`

	Analysis

	Notes       string     `json:"notes"`
	Priority    string     `json:"priority,omitempty"`
	LastError   string     `json:"last_error"`
	ChatHistory []ChatTurn `json:"chat_history,omitempty"`
}

// Title returns the display title, falling back to the URL.
func (a Article) Title() string {
	if a.ArticleTitle != "" {
		return a.ArticleTitle
	}
	return a.URL
}

// Clone returns a copy that shares no slices with a.
func (a Article) Clone() Article {
	out := a
	if a.ChatHistory != nil {
		out.ChatHistory = append([]ChatTurn(nil), a.ChatHistory...)
	}
	out.Analysis = a.Analysis.clone()
	return out
}

func (an Analysis) clone() Analysis {
	out := an
	for _, f := range []*List{
		&out.FullSummaryBullets, &out.HistoryOverview, &out.PeopleMentioned,
		&out.OrganizationsInvolved, &out.Allegations, &out.CurrentSituation,
		&out.NextSteps, &out.PreventionStrategies, &out.DiscoveryQuestions,
	} {
		if *f != nil {
			*f = append(List(nil), (*f)...)
		}
	}
	return out
}

// ArticlePatch carries a partial update. Nil fields are left untouched.
type ArticlePatch struct {
	Status       *Status
	Priority     *string
	Notes        *string
	ArticleTitle *string
	Date         *string
	LastError    *string
	// Analysis replaces the whole analysis payload.
	Analysis *Analysis
	// AppendChat is added to the end of the chat history.
	AppendChat *ChatTurn
}

// Apply merges p into a.
func (p ArticlePatch) Apply(a *Article) {
	if p.Analysis != nil {
		a.Analysis = p.Analysis.clone()
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Priority != nil {
		a.Priority = *p.Priority
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.ArticleTitle != nil {
		a.ArticleTitle = *p.ArticleTitle
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.LastError != nil {
		a.LastError = *p.LastError
	}
	if p.AppendChat != nil {
		a.ChatHistory = append(a.ChatHistory, *p.AppendChat)
	}
}

// Empty reports whether the patch changes nothing.
func (p ArticlePatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.Notes == nil &&
		p.ArticleTitle == nil && p.Date == nil && p.LastError == nil &&
		p.Analysis == nil && p.AppendChat == nil
}

// Ptr returns a pointer to v; handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// Page is the scraped text of an article.
type Page struct {
	Title string
	Text  string
}
