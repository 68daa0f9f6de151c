// Package pipeline sequences the processing of raw competitor signals.
//
// Each claimed item moves through a fixed state machine:
//
//	Dequeued -> Deduplicating -> Enriching -> Scoring -> Persisting
//	         -> Done | DuplicateDiscarded | DeadLettered
//
// One worker owns an item end to end; sentiment and entity enrichment run
// concurrently per item and join before scoring.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
	apperrors "github.com/rivalscope/intel-pipeline/internal/core/errors"
	"github.com/rivalscope/intel-pipeline/internal/enrich"
	"github.com/rivalscope/intel-pipeline/internal/notify"
	"github.com/rivalscope/intel-pipeline/internal/platform/config"
	"github.com/rivalscope/intel-pipeline/internal/platform/observability"
	"github.com/rivalscope/intel-pipeline/internal/platform/worker"
	"github.com/rivalscope/intel-pipeline/internal/process/dedup"
	"github.com/rivalscope/intel-pipeline/internal/process/fingerprint"
	"github.com/rivalscope/intel-pipeline/internal/process/insights"
	"github.com/rivalscope/intel-pipeline/internal/process/priority"
	"github.com/rivalscope/intel-pipeline/internal/queue"
	db "github.com/rivalscope/intel-pipeline/internal/storage"
)

const (
	logFieldQueueID       = "queue_id"
	logFieldTenantID      = "tenant_id"
	logFieldCorrelationID = "correlation_id"

	gaugeRefreshInterval = 30 * time.Second
	recoveryInterval     = time.Minute
	notifyTimeout        = 10 * time.Second
)

// Repository is the slice of the store the orchestrator needs.
type Repository interface {
	ClaimNextRawItem(ctx context.Context) (*db.QueueItem, error)
	ResolveQueueItem(ctx context.Context, queueID, status string) error
	ScheduleRetry(ctx context.Context, queueID, lastError string, retryAt time.Time) error
	MarkDeadLettered(ctx context.Context, queueID, lastError string) error
	GetBacklogCount(ctx context.Context) (int, error)
	GetDeadLetterCount(ctx context.Context) (int, error)
	RecoverStuckItems(ctx context.Context, threshold time.Duration) (int64, error)
	InsertProcessedItem(ctx context.Context, item *domain.ProcessedItem) error
	SaveDataQualityEvent(ctx context.Context, queueID, reason, detail string) error
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)

// Orchestrator owns the worker pool that drains the ingestion queue.
type Orchestrator struct {
	cfg          *config.Config
	database     Repository
	deduplicator dedup.Deduplicator
	sentiment    enrich.SentimentAnalyzer
	entities     enrich.EntityExtractor
	notifier     notify.Notifier
	notifyTier   domain.PriorityTier
	logger       *zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New wires the orchestrator. All collaborators are passed in explicitly;
// there is no ambient global state.
func New(
	cfg *config.Config,
	database Repository,
	deduplicator dedup.Deduplicator,
	sentiment enrich.SentimentAnalyzer,
	entities enrich.EntityExtractor,
	notifier notify.Notifier,
	logger *zerolog.Logger,
) *Orchestrator {
	notifyTier := domain.PriorityTier(cfg.NotifyMinTier)
	if notifyTier.Rank() == 0 && notifyTier != domain.TierLow {
		notifyTier = domain.TierHigh
	}

	return &Orchestrator{
		cfg:          cfg,
		database:     database,
		deduplicator: deduplicator,
		sentiment:    sentiment,
		entities:     entities,
		notifier:     notifier,
		notifyTier:   notifyTier,
		logger:       logger,
		stopped:      make(chan struct{}),
	}
}

// Run starts the worker pool and blocks until the context is canceled and
// all in-flight items reached a terminal state.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	defer cancel()

	var wg sync.WaitGroup

	for i := 0; i < o.workerCount(); i++ {
		wg.Add(1)

		name := fmt.Sprintf("pipeline-%d", i)
		cfg := worker.Config{
			Name:         name,
			PollInterval: o.cfg.WorkerPollInterval,
			Process:      o.processNext,
			Logger:       o.logger,
		}

		// The first worker also runs the maintenance sweeps.
		if i == 0 {
			cfg.PeriodicTasks = []worker.PeriodicTask{
				{Name: "recover-stuck-items", Interval: recoveryInterval, Run: o.recoverStuckItems},
				{Name: "refresh-queue-gauges", Interval: gaugeRefreshInterval, Run: o.refreshQueueGauges},
			}
		}

		go func() {
			defer wg.Done()

			if err := worker.Loop(runCtx, cfg); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error().Err(err).Str("worker", name).Msg("worker loop exited")
			}
		}()
	}

	wg.Wait()
	close(o.stopped)

	return runCtx.Err() //nolint:wrapcheck
}

// DrainAndStop stops claiming new work and waits for in-flight items to
// reach a terminal state, bounded by ctx.
func (o *Orchestrator) DrainAndStop(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-o.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain interrupted: %w", ctx.Err())
	}
}

func (o *Orchestrator) workerCount() int {
	if o.cfg.WorkerCount < 1 {
		return 1
	}

	return o.cfg.WorkerCount
}

// processNext claims and processes one item. Returning nil with no work
// lets the worker loop sleep for its poll interval.
func (o *Orchestrator) processNext(ctx context.Context) error {
	claimed, err := o.database.ClaimNextRawItem(ctx)
	if err != nil {
		return fmt.Errorf("claim next item: %w", err)
	}

	if claimed == nil {
		return nil
	}

	// In-flight items are never hard-killed by shutdown: processing
	// continues on a detached context until the item is terminal.
	itemCtx, cancelItem := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ItemTimeout)
	defer cancelItem()

	o.processItem(itemCtx, claimed)

	return nil
}

func (o *Orchestrator) processItem(ctx context.Context, claimed *db.QueueItem) {
	start := time.Now()
	logger := o.logger.With().
		Str(logFieldQueueID, claimed.ID).
		Str(logFieldTenantID, claimed.Item.TenantID).
		Str(logFieldCorrelationID, uuid.New().String()).
		Logger()

	item := &domain.ProcessedItem{
		RawItem:     claimed.Item,
		Fingerprint: fingerprint.Compute(claimed.Item),
		ProcessedAt: time.Now(),
	}

	// Deduplicating
	check := o.deduplicator.Check(ctx, item.TenantID, item.Fingerprint)
	if check.Duplicate {
		o.finishDuplicate(ctx, logger, claimed.ID)
		return
	}

	if check.Recheck {
		item.DedupRecheck = true
		o.recordQualityEvent(ctx, logger, claimed.ID, db.QualityReasonDedupRecheck, "store unavailable during dedup check")
	}

	// Enriching
	o.enrichItem(ctx, logger, claimed.ID, item)
	item.OccurredAt = o.normalizeTimestamp(ctx, logger, claimed)

	// Scoring
	item.Insights = insights.Derive(item.RawItem, item.Sentiment, item.Entities)
	item.Tier = priority.Classify(item.RawItem, item.Sentiment, item.Insights)

	// Persisting
	if err := o.database.InsertProcessedItem(ctx, item); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateItem) {
			o.finishDuplicate(ctx, logger, claimed.ID)
			return
		}

		o.handlePersistFailure(ctx, logger, claimed, err)

		return
	}

	if err := o.database.ResolveQueueItem(ctx, claimed.ID, db.QueueStatusDone); err != nil {
		logger.Error().Err(err).Msg("failed to mark queue item done")
	}

	observability.PipelineProcessed.WithLabelValues(domain.StateDone).Inc()
	observability.ItemProcessingSeconds.Observe(time.Since(start).Seconds())
	logger.Info().
		Str("tier", string(item.Tier)).
		Int("insights", len(item.Insights)).
		Bool("degraded", item.Degraded).
		Msg("item processed")

	if item.Tier.AtLeast(o.notifyTier) {
		o.notifyAsync(item)
	}
}

// enrichResult collects the adapter outputs; each goroutine writes its own
// fields before the join.
type enrichResult struct {
	sentiment    domain.Sentiment
	sentimentErr error
	entities     []domain.Entity
	entityErr    error
}

// enrichItem runs both adapters concurrently and joins before returning.
// Adapter failures degrade the item instead of failing it: sentiment falls
// back to neutral, entities to an empty list.
func (o *Orchestrator) enrichItem(ctx context.Context, logger zerolog.Logger, queueID string, item *domain.ProcessedItem) {
	var (
		res enrichResult
		wg  sync.WaitGroup
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		res.sentiment, res.sentimentErr = o.sentiment.Analyze(ctx, item.Content)
	}()

	go func() {
		defer wg.Done()
		res.entities, res.entityErr = o.entities.Extract(ctx, item.Content)
	}()

	wg.Wait()

	if res.sentimentErr != nil {
		logger.Warn().Err(res.sentimentErr).Msg("sentiment adapter failed, substituting neutral")
		observability.AdapterDegradations.WithLabelValues("sentiment").Inc()
		o.recordQualityEvent(ctx, logger, queueID, db.QualityReasonSentimentFallback, res.sentimentErr.Error())

		item.Sentiment = enrich.NeutralSentiment()
		item.Degraded = true
	} else {
		item.Sentiment = res.sentiment
	}

	if res.entityErr != nil {
		logger.Warn().Err(res.entityErr).Msg("entity adapter failed, continuing without entities")
		observability.AdapterDegradations.WithLabelValues("entity").Inc()
		o.recordQualityEvent(ctx, logger, queueID, db.QualityReasonEntityFallback, res.entityErr.Error())

		item.Entities = nil
		item.Degraded = true
	} else {
		item.Entities = res.entities
	}
}

// normalizeTimestamp parses the collector-reported timestamp. A missing
// value falls back to the enqueue time; an unparseable one falls back to
// now and is recorded as a data-quality event.
func (o *Orchestrator) normalizeTimestamp(ctx context.Context, logger zerolog.Logger, claimed *db.QueueItem) time.Time {
	raw := claimed.Item.Metadata.Timestamp
	if raw == "" {
		if !claimed.Item.CreatedAt.IsZero() {
			return claimed.Item.CreatedAt
		}

		return time.Now()
	}

	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		logger.Warn().Err(err).Str("timestamp", raw).Msg("timestamp parse failed, substituting now")
		observability.TimestampFallbacks.Inc()
		o.recordQualityEvent(ctx, logger, claimed.ID, db.QualityReasonTimestampParse, raw)

		return time.Now()
	}

	return parsed
}

func (o *Orchestrator) finishDuplicate(ctx context.Context, logger zerolog.Logger, queueID string) {
	if err := o.database.ResolveQueueItem(ctx, queueID, db.QueueStatusDuplicate); err != nil {
		logger.Error().Err(err).Msg("failed to mark queue item duplicate")
	}

	observability.PipelineProcessed.WithLabelValues(domain.StateDuplicateDiscarded).Inc()
	logger.Info().Msg("duplicate item discarded")
}

// handlePersistFailure requeues the item with exponential backoff, or
// dead-letters it once retries are exhausted. Items are never silently
// dropped.
func (o *Orchestrator) handlePersistFailure(ctx context.Context, logger zerolog.Logger, claimed *db.QueueItem, cause error) {
	if claimed.AttemptCount > o.cfg.MaxAttempts {
		if err := o.database.MarkDeadLettered(ctx, claimed.ID, cause.Error()); err != nil {
			logger.Error().Err(err).Msg("failed to dead-letter queue item")
		}

		observability.PipelineProcessed.WithLabelValues(domain.StateDeadLettered).Inc()
		logger.Error().Err(cause).Int("attempts", claimed.AttemptCount).Msg("item dead-lettered after exhausting retries")

		return
	}

	delay := queue.Backoff(claimed.AttemptCount, o.cfg.RetryBaseDelay)

	if err := o.database.ScheduleRetry(ctx, claimed.ID, cause.Error(), time.Now().Add(delay)); err != nil {
		logger.Error().Err(err).Msg("failed to schedule retry")
		return
	}

	logger.Warn().Err(cause).
		Int("attempt", claimed.AttemptCount).
		Dur("retry_in", delay).
		Msg("persistence failed, retry scheduled")
}

// notifyAsync fires the notifier without blocking or failing the item.
func (o *Orchestrator) notifyAsync(item *domain.ProcessedItem) {
	go func() {
		defer worker.RecoverPanic(o.logger, "notify")

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := o.notifier.Notify(ctx, item); err != nil {
			observability.NotificationsSent.WithLabelValues("error").Inc()
			o.logger.Warn().Err(err).Str(logFieldTenantID, item.TenantID).Msg("notifier call failed")

			return
		}

		observability.NotificationsSent.WithLabelValues("success").Inc()
	}()
}

func (o *Orchestrator) recoverStuckItems(ctx context.Context) {
	recovered, err := o.database.RecoverStuckItems(ctx, o.cfg.StuckItemThreshold)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to recover stuck items")
		return
	}

	if recovered > 0 {
		o.logger.Info().Int64("recovered", recovered).Msg("recovered stuck queue items")
	}
}

func (o *Orchestrator) refreshQueueGauges(ctx context.Context) {
	if backlog, err := o.database.GetBacklogCount(ctx); err == nil {
		observability.PipelineBacklog.Set(float64(backlog))
	}

	if deadLettered, err := o.database.GetDeadLetterCount(ctx); err == nil {
		observability.DeadLetterSize.Set(float64(deadLettered))
	}
}

func (o *Orchestrator) recordQualityEvent(ctx context.Context, logger zerolog.Logger, queueID, reason, detail string) {
	if err := o.database.SaveDataQualityEvent(ctx, queueID, reason, detail); err != nil {
		logger.Warn().Err(err).Str("reason", reason).Msg("failed to save data quality event")
	}
}
