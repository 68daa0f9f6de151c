// Package domain holds the core types shared across the intelligence
// pipeline: raw competitor signals, their enriched form, and the
// classification vocabulary (sources, kinds, priority tiers).
package domain

import "time"

// Source identifies where a raw signal was collected from.
type Source string

const (
	SourceWebSearch      Source = "web-search-result"
	SourceReviewSite     Source = "review-site"
	SourceSocialFeed     Source = "social-feed"
	SourceNewsFeed       Source = "news-feed"
	SourceCompetitorSite Source = "competitor-site"
)

// Kind classifies what a raw signal reports about a competitor.
type Kind string

const (
	KindReview      Kind = "review"
	KindMention     Kind = "mention"
	KindPriceChange Kind = "price-change"
	KindNewService  Kind = "new-service"
	KindAdCampaign  Kind = "ad-campaign"
)

// RawItem is one external signal waiting to be processed.
// TenantID must always be non-empty; the queue rejects items without it.
type RawItem struct {
	ID        string
	TenantID  string
	Source    Source
	Kind      Kind
	Content   string
	Metadata  ItemMetadata
	RawJSON   []byte // original collector payload, preserved for audit
	CreatedAt time.Time
}

// ItemMetadata carries collector-provided context about a signal.
type ItemMetadata struct {
	Author       string
	Rating       *float32
	Timestamp    string // ISO timestamp as reported by the source
	SourceURL    string
	Location     string
	SubjectID    string // business the signal is about
	CompetitorID string
}

// Sentiment is the polarity result for an item's content.
type Sentiment struct {
	Score     float32 // [-1, 1]
	Magnitude float32 // [0, 1]
	Label     SentimentLabel
}

// SentimentLabel is derived from the score thresholds (+-0.1).
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Entity is a named entity extracted from item content.
type Entity struct {
	Type       string
	Value      string
	Confidence float32 // [0, 1]
}

// PriorityTier is the ordinal urgency classification of a processed item.
type PriorityTier string

const (
	TierLow      PriorityTier = "low"
	TierMedium   PriorityTier = "medium"
	TierHigh     PriorityTier = "high"
	TierCritical PriorityTier = "critical"
)

var tierRank = map[PriorityTier]int{
	TierLow:      0,
	TierMedium:   1,
	TierHigh:     2,
	TierCritical: 3,
}

// Rank returns the ordinal position of the tier (low=0 .. critical=3).
func (t PriorityTier) Rank() int {
	return tierRank[t]
}

// AtLeast reports whether t is as urgent as other or more.
func (t PriorityTier) AtLeast(other PriorityTier) bool {
	return tierRank[t] >= tierRank[other]
}

// InsightCategory is the structured tag attached to a derived insight.
// The priority scorer consumes categories, not insight text.
type InsightCategory string

const (
	CategoryNeedsAttention    InsightCategory = "needs_attention"
	CategoryOpportunity       InsightCategory = "opportunity"
	CategoryCompetitorMention InsightCategory = "competitor_mention"
	CategoryPricingChange     InsightCategory = "pricing_change"
	CategoryNewService        InsightCategory = "new_service"

	// CategoryRecommendation marks advisory insights. None of the core
	// rules emit it today, but the scorer weighs it below needs_attention.
	CategoryRecommendation InsightCategory = "recommendation"
)

// Insight is one human-readable finding derived from an item, tagged with
// a category for downstream scoring.
type Insight struct {
	Category InsightCategory
	Text     string
}

// ProcessedItem is a RawItem enriched with derived fields, owned by the
// orchestrator from dequeue until persisted or discarded.
type ProcessedItem struct {
	RawItem

	Fingerprint  string
	Sentiment    Sentiment
	Entities     []Entity
	Insights     []Insight
	Tier         PriorityTier
	OccurredAt   time.Time // normalized Metadata.Timestamp
	ProcessedAt  time.Time
	Degraded     bool // a sentiment or entity adapter failed soft
	DedupRecheck bool // dedup check ran against an unavailable store
}

// InsightTexts returns the display strings in evaluation order.
func (p *ProcessedItem) InsightTexts() []string {
	texts := make([]string, len(p.Insights))
	for i, ins := range p.Insights {
		texts[i] = ins.Text
	}

	return texts
}

// Item processing states used by the orchestrator and queue.
const (
	StateDequeued           = "dequeued"
	StateDeduplicating      = "deduplicating"
	StateEnriching          = "enriching"
	StateScoring            = "scoring"
	StatePersisting         = "persisting"
	StateDone               = "done"
	StateDuplicateDiscarded = "duplicate_discarded"
	StateDeadLettered       = "dead_lettered"
)
