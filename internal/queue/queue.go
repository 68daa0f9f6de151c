// Package queue is the ingestion boundary of the pipeline. It validates
// incoming raw items, assigns their scheduling priority, and hands them to
// the durable store-backed queue.
//
// Queue priority only affects scheduling order; the output priority tier
// computed downstream is a separate concept and never derives from it.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
	apperrors "github.com/rivalscope/intel-pipeline/internal/core/errors"
	"github.com/rivalscope/intel-pipeline/internal/platform/observability"
)

// Queue scheduling priorities by source freshness.
const (
	PriorityRealtime = 2 // social and news feeds
	PriorityReview   = 1 // review platforms
	PriorityGeneric  = 0 // everything else
)

// Repository is the durable queue backend.
type Repository interface {
	EnqueueRawItem(ctx context.Context, item domain.RawItem, queuePriority int) (string, error)
}

// Ingress accepts raw items into the pipeline.
type Ingress struct {
	db     Repository
	logger *zerolog.Logger
}

// NewIngress builds the queue ingress.
func NewIngress(database Repository, logger *zerolog.Logger) *Ingress {
	return &Ingress{
		db:     database,
		logger: logger,
	}
}

// Enqueue validates one raw item and inserts it into the durable queue.
// A missing tenant identity is a fatal validation error, never retried.
func (q *Ingress) Enqueue(ctx context.Context, item domain.RawItem) (string, error) {
	if err := Validate(item); err != nil {
		observability.ItemsRejected.Inc()

		return "", err
	}

	id, err := q.db.EnqueueRawItem(ctx, item, PriorityFor(item.Source))
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	observability.ItemsEnqueued.WithLabelValues(string(item.Source)).Inc()
	q.logger.Debug().
		Str("queue_id", id).
		Str("tenant_id", item.TenantID).
		Str("source", string(item.Source)).
		Msg("item enqueued")

	return id, nil
}

// Validate checks a raw item's shape before it is accepted.
func Validate(item domain.RawItem) error {
	if item.TenantID == "" {
		return apperrors.ErrMissingTenant
	}

	if !validSources[item.Source] {
		return fmt.Errorf("%w: unknown source %q", apperrors.ErrInvalidItem, item.Source)
	}

	if !validKinds[item.Kind] {
		return fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidItem, item.Kind)
	}

	return nil
}

var validSources = map[domain.Source]bool{
	domain.SourceWebSearch:      true,
	domain.SourceReviewSite:     true,
	domain.SourceSocialFeed:     true,
	domain.SourceNewsFeed:       true,
	domain.SourceCompetitorSite: true,
}

var validKinds = map[domain.Kind]bool{
	domain.KindReview:      true,
	domain.KindMention:     true,
	domain.KindPriceChange: true,
	domain.KindNewService:  true,
	domain.KindAdCampaign:  true,
}

// PriorityFor maps a source to its queue scheduling priority. Real-time
// sources rank above review platforms, which rank above generic sources.
func PriorityFor(source domain.Source) int {
	switch source {
	case domain.SourceSocialFeed, domain.SourceNewsFeed:
		return PriorityRealtime
	case domain.SourceReviewSite:
		return PriorityReview
	default:
		return PriorityGeneric
	}
}

// Backoff returns the retry delay before the given attempt number is
// retried: base, 2*base, 4*base, ... (2s, 4s, 8s with the default base).
func Backoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return base << (attempt - 1)
}
