// Package enrich defines the enrichment adapter contracts and their
// concrete providers. Sentiment and entity extraction are consumed through
// stable interfaces so the orchestrator never depends on a specific
// provider and tests can substitute deterministic stubs.
package enrich

import (
	"context"
	"unicode/utf8"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

// ProviderName identifies an enrichment provider.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderMock   ProviderName = "mock"
)

// SentimentAnalyzer scores text polarity and magnitude.
//
// Callers treat failures as transient: the orchestrator substitutes a
// neutral zero-score result and continues, so implementations should
// return errors rather than degrade silently.
type SentimentAnalyzer interface {
	Name() ProviderName
	Analyze(ctx context.Context, text string) (domain.Sentiment, error)
}

// EntityExtractor extracts named entities with confidence scores.
// On failure the orchestrator proceeds with an empty entity list.
type EntityExtractor interface {
	Name() ProviderName
	Extract(ctx context.Context, text string) ([]domain.Entity, error)
}

// Sentiment label thresholds: score above +0.1 is positive, below -0.1
// negative, neutral in between.
const labelThreshold = 0.1

// LabelFor derives the sentiment label from a polarity score.
func LabelFor(score float32) domain.SentimentLabel {
	switch {
	case score > labelThreshold:
		return domain.SentimentPositive
	case score < -labelThreshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// NeutralSentiment is the substitution used when an analyzer fails.
func NeutralSentiment() domain.Sentiment {
	return domain.Sentiment{Score: 0, Magnitude: 0, Label: domain.SentimentNeutral}
}

func clamp(v, low, high float32) float32 {
	if v < low {
		return low
	}

	if v > high {
		return high
	}

	return v
}

// truncateRunes cuts s to at most limit bytes without splitting a rune, so
// a truncated prompt stays valid UTF-8.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
