// Package insights derives human-readable findings from an enriched item.
//
// Rules are evaluated in a fixed order and each appends independently, so
// the output list preserves evaluation order and may contain several
// insights for one item. Every insight carries a structured category; the
// priority scorer consumes categories rather than matching text.
package insights

import (
	"fmt"
	"strings"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

const (
	strongMagnitude    = 0.5
	orgConfidenceFloor = 0.7
	entityTypeOrg      = "organization"
)

// Derive evaluates the rule set against an item's enrichment results.
// Pure; the returned slice preserves rule order and may be empty.
func Derive(item domain.RawItem, sentiment domain.Sentiment, entities []domain.Entity) []domain.Insight {
	var out []domain.Insight

	if sentiment.Label == domain.SentimentNegative && sentiment.Magnitude > strongMagnitude {
		out = append(out, domain.Insight{
			Category: domain.CategoryNeedsAttention,
			Text:     "high negative sentiment, needs attention",
		})
	}

	if sentiment.Label == domain.SentimentPositive && sentiment.Magnitude > strongMagnitude {
		out = append(out, domain.Insight{
			Category: domain.CategoryOpportunity,
			Text:     "strong positive sentiment, marketing opportunity",
		})
	}

	if orgs := organizationMentions(entities); len(orgs) > 0 {
		out = append(out, domain.Insight{
			Category: domain.CategoryCompetitorMention,
			Text:     fmt.Sprintf("competitor mention(s): %s", strings.Join(orgs, ", ")),
		})
	}

	if item.Kind == domain.KindPriceChange {
		out = append(out, domain.Insight{
			Category: domain.CategoryPricingChange,
			Text:     "pricing change detected",
		})
	}

	if item.Kind == domain.KindNewService {
		out = append(out, domain.Insight{
			Category: domain.CategoryNewService,
			Text:     "new competitor service detected",
		})
	}

	return out
}

func organizationMentions(entities []domain.Entity) []string {
	var values []string

	for _, e := range entities {
		if e.Type == entityTypeOrg && e.Confidence > orgConfidenceFloor {
			values = append(values, e.Value)
		}
	}

	return values
}
