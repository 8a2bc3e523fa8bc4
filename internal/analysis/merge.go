package analysis

import "ArticleDesk/internal/domain"

// Merge overlays next on prev: every non-empty field of next wins, empty
// fields keep the previous value.
func Merge(prev, next domain.Analysis) domain.Analysis {
	out := prev
	setText(&out.ArticleTitle, next.ArticleTitle)
	setText(&out.Date, next.Date)
	setText(&out.DateVerification, next.DateVerification)
	setText(&out.TLDR, next.TLDR)
	setText(&out.Summary, next.Summary)
	if next.FraudIndicator != "" {
		out.FraudIndicator = next.FraudIndicator
	}

	setList(&out.FullSummaryBullets, next.FullSummaryBullets)
	setList(&out.HistoryOverview, next.HistoryOverview)
	setList(&out.PeopleMentioned, next.PeopleMentioned)
	setList(&out.OrganizationsInvolved, next.OrganizationsInvolved)
	setList(&out.Allegations, next.Allegations)
	setList(&out.CurrentSituation, next.CurrentSituation)
	setList(&out.NextSteps, next.NextSteps)
	setList(&out.PreventionStrategies, next.PreventionStrategies)
	setList(&out.DiscoveryQuestions, next.DiscoveryQuestions)
	return out
}

func setText(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setList(dst *domain.List, v domain.List) {
	if len(v) > 0 {
		*dst = append(domain.List(nil), v...)
	}
}
