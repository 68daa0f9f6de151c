package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
	apperrors "github.com/rivalscope/intel-pipeline/internal/core/errors"
	"github.com/rivalscope/intel-pipeline/internal/platform/config"
	"github.com/rivalscope/intel-pipeline/internal/platform/observability"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
	rateLimiterBurst        = 5
	maxAnalyzedChars        = 4000

	sentimentSystemPrompt = `You score text sentiment. Respond with only a JSON object:
{"score": <float -1..1, polarity>, "magnitude": <float 0..1, emotional strength>}`

	entitySystemPrompt = `You extract named entities from text. Respond with only a JSON object:
{"entities": [{"type": "<organization|person|location|product|other>", "value": "<string>", "confidence": <float 0..1>}]}`
)

type openaiClient struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// NewOpenAI builds the OpenAI-backed sentiment and entity providers. Both
// share one client, rate limiter, and circuit breaker.
func NewOpenAI(cfg *config.Config, logger *zerolog.Logger) (SentimentAnalyzer, EntityExtractor) {
	c := &openaiClient{
		client:      openai.NewClient(cfg.OpenAIAPIKey),
		model:       cfg.OpenAIModel,
		timeout:     cfg.AdapterTimeout,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.AdapterRPS)), rateLimiterBurst),
	}

	return &openaiSentiment{c}, &openaiEntities{c}
}

type openaiSentiment struct{ *openaiClient }

func (p *openaiSentiment) Name() ProviderName { return ProviderOpenAI }

func (p *openaiSentiment) Analyze(ctx context.Context, text string) (domain.Sentiment, error) {
	start := time.Now()
	defer func() {
		observability.AdapterRequestDuration.WithLabelValues("sentiment").Observe(time.Since(start).Seconds())
	}()

	raw, err := p.complete(ctx, sentimentSystemPrompt, text)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("sentiment analyze: %w", err)
	}

	var parsed struct {
		Score     float32 `json:"score"`
		Magnitude float32 `json:"magnitude"`
	}

	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.Sentiment{}, fmt.Errorf("parse sentiment response: %w", err)
	}

	score := clamp(parsed.Score, -1, 1)

	return domain.Sentiment{
		Score:     score,
		Magnitude: clamp(parsed.Magnitude, 0, 1),
		Label:     LabelFor(score),
	}, nil
}

type openaiEntities struct{ *openaiClient }

func (p *openaiEntities) Name() ProviderName { return ProviderOpenAI }

func (p *openaiEntities) Extract(ctx context.Context, text string) ([]domain.Entity, error) {
	start := time.Now()
	defer func() {
		observability.AdapterRequestDuration.WithLabelValues("entity").Observe(time.Since(start).Seconds())
	}()

	raw, err := p.complete(ctx, entitySystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("entity extract: %w", err)
	}

	var parsed struct {
		Entities []struct {
			Type       string  `json:"type"`
			Value      string  `json:"value"`
			Confidence float32 `json:"confidence"`
		} `json:"entities"`
	}

	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse entity response: %w", err)
	}

	entities := make([]domain.Entity, 0, len(parsed.Entities))

	for _, e := range parsed.Entities {
		if e.Value == "" {
			continue
		}

		entities = append(entities, domain.Entity{
			Type:       e.Type,
			Value:      e.Value,
			Confidence: clamp(e.Confidence, 0, 1),
		})
	}

	return entities, nil
}

func (c *openaiClient) complete(ctx context.Context, systemPrompt, text string) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	text = truncateRunes(text, maxAnalyzedChars)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		c.recordFailure()

		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		return "", apperrors.ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", apperrors.ErrCircuitBreakerOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("adapter circuit breaker opened")
	}
}
