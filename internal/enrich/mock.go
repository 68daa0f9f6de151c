package enrich

import (
	"context"
	"strings"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

// mockSentiment implements SentimentAnalyzer with deterministic keyword
// heuristics, for local runs without an API key.
type mockSentiment struct{}

// NewMockSentiment creates a deterministic sentiment analyzer.
func NewMockSentiment() SentimentAnalyzer {
	return &mockSentiment{}
}

func (m *mockSentiment) Name() ProviderName { return ProviderMock }

var (
	negativeWords = []string{"bad", "slow", "overpriced", "rude", "broken", "terrible", "worst"}
	positiveWords = []string{"great", "excellent", "fast", "friendly", "love", "best", "recommend"}
)

func (m *mockSentiment) Analyze(_ context.Context, text string) (domain.Sentiment, error) {
	lower := strings.ToLower(text)

	hits := 0
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			hits--
		}
	}

	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}

	score := clamp(float32(hits)*0.4, -1, 1)
	magnitude := clamp(float32(abs(hits))*0.4, 0, 1)

	return domain.Sentiment{
		Score:     score,
		Magnitude: magnitude,
		Label:     LabelFor(score),
	}, nil
}

// mockEntities implements EntityExtractor by treating capitalized
// multi-word runs as organizations. Good enough for local pipelines.
type mockEntities struct{}

// NewMockEntities creates a deterministic entity extractor.
func NewMockEntities() EntityExtractor {
	return &mockEntities{}
}

func (m *mockEntities) Name() ProviderName { return ProviderMock }

func (m *mockEntities) Extract(_ context.Context, text string) ([]domain.Entity, error) {
	var entities []domain.Entity

	seen := make(map[string]bool)

	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ".,!?;:\"'()")
		if len(trimmed) < 2 || trimmed[0] < 'A' || trimmed[0] > 'Z' {
			continue
		}

		if seen[trimmed] {
			continue
		}

		seen[trimmed] = true
		entities = append(entities, domain.Entity{
			Type:       "organization",
			Value:      trimmed,
			Confidence: 0.75,
		})
	}

	return entities, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
