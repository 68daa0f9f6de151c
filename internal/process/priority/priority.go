// Package priority converts enrichment signals into a discrete tier.
//
// Scoring is additive over independent contributions and fully
// deterministic given identical inputs. Insight contributions are keyed by
// category, not by insight text.
package priority

import (
	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

// Additive score contributions.
const (
	highMagnitudePoints   = 2
	mediumMagnitudePoints = 1
	priceChangePoints     = 2
	newServicePoints      = 1
	needsAttentionPoints  = 3
	recommendationPoints  = 1
	trustedSourcePoints   = 1
)

// Magnitude thresholds.
const (
	highMagnitude   = 0.8
	mediumMagnitude = 0.5
)

// Tier thresholds.
const (
	criticalThreshold = 5
	highThreshold     = 3
	mediumThreshold   = 1
)

// Score computes the raw additive score for an item.
func Score(item domain.RawItem, sentiment domain.Sentiment, insights []domain.Insight) int {
	score := 0

	switch {
	case sentiment.Magnitude > highMagnitude:
		score += highMagnitudePoints
	case sentiment.Magnitude > mediumMagnitude:
		score += mediumMagnitudePoints
	}

	switch item.Kind {
	case domain.KindPriceChange:
		score += priceChangePoints
	case domain.KindNewService:
		score += newServicePoints
	}

	if hasCategory(insights, domain.CategoryNeedsAttention) {
		score += needsAttentionPoints
	} else if hasCategory(insights, domain.CategoryRecommendation) {
		score += recommendationPoints
	}

	if item.Source == domain.SourceReviewSite {
		score += trustedSourcePoints
	}

	return score
}

// Tier maps a raw score to its priority tier.
func Tier(score int) domain.PriorityTier {
	switch {
	case score >= criticalThreshold:
		return domain.TierCritical
	case score >= highThreshold:
		return domain.TierHigh
	case score >= mediumThreshold:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// Classify scores an item and returns its tier in one step.
func Classify(item domain.RawItem, sentiment domain.Sentiment, insights []domain.Insight) domain.PriorityTier {
	return Tier(Score(item, sentiment, insights))
}

func hasCategory(insights []domain.Insight, category domain.InsightCategory) bool {
	for _, ins := range insights {
		if ins.Category == category {
			return true
		}
	}

	return false
}
