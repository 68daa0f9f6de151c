package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
	apperrors "github.com/rivalscope/intel-pipeline/internal/core/errors"
	"github.com/rivalscope/intel-pipeline/internal/enrich"
	"github.com/rivalscope/intel-pipeline/internal/platform/config"
	"github.com/rivalscope/intel-pipeline/internal/process/dedup"
	db "github.com/rivalscope/intel-pipeline/internal/storage"
)

type mockStore struct {
	mu sync.Mutex

	queue []*db.QueueItem

	persisted     []*domain.ProcessedItem
	insertErrs    []error
	existsResult  bool
	existsErr     error
	resolved      map[string]string
	retries       []time.Time
	deadLettered  []string
	qualityEvents []string
}

func newMockStore(items ...*db.QueueItem) *mockStore {
	return &mockStore{queue: items, resolved: map[string]string{}}
}

func (m *mockStore) ClaimNextRawItem(_ context.Context) (*db.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil, nil
	}

	next := m.queue[0]
	m.queue = m.queue[1:]
	next.AttemptCount++

	return next, nil
}

func (m *mockStore) ResolveQueueItem(_ context.Context, queueID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolved[queueID] = status

	return nil
}

func (m *mockStore) ScheduleRetry(_ context.Context, _, _ string, retryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retries = append(m.retries, retryAt)

	return nil
}

func (m *mockStore) MarkDeadLettered(_ context.Context, queueID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadLettered = append(m.deadLettered, queueID)

	return nil
}

func (m *mockStore) GetBacklogCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue), nil
}

func (m *mockStore) GetDeadLetterCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.deadLettered), nil
}

func (m *mockStore) RecoverStuckItems(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (m *mockStore) InsertProcessedItem(_ context.Context, item *domain.ProcessedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.insertErrs) > 0 {
		err := m.insertErrs[0]
		m.insertErrs = m.insertErrs[1:]

		if err != nil {
			return err
		}
	}

	for _, existing := range m.persisted {
		if existing.TenantID == item.TenantID && existing.Fingerprint == item.Fingerprint {
			return apperrors.ErrDuplicateItem
		}
	}

	m.persisted = append(m.persisted, item)

	return nil
}

func (m *mockStore) SaveDataQualityEvent(_ context.Context, _, reason, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.qualityEvents = append(m.qualityEvents, reason)

	return nil
}

func (m *mockStore) ProcessedItemExists(_ context.Context, tenantID, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.existsErr != nil {
		return false, m.existsErr
	}

	if m.existsResult {
		return true, nil
	}

	for _, existing := range m.persisted {
		if existing.TenantID == tenantID && existing.Fingerprint == fp {
			return true, nil
		}
	}

	return false, nil
}

type stubSentiment struct {
	result domain.Sentiment
	err    error
}

func (s *stubSentiment) Name() enrich.ProviderName { return "stub" }

func (s *stubSentiment) Analyze(_ context.Context, _ string) (domain.Sentiment, error) {
	return s.result, s.err
}

type stubEntities struct {
	result []domain.Entity
	err    error
}

func (s *stubEntities) Name() enrich.ProviderName { return "stub" }

func (s *stubEntities) Extract(_ context.Context, _ string) ([]domain.Entity, error) {
	return s.result, s.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []*domain.ProcessedItem
	done  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Notify(_ context.Context, item *domain.ProcessedItem) error {
	n.mu.Lock()
	n.items = append(n.items, item)
	n.mu.Unlock()

	n.done <- struct{}{}

	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.items)
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerCount:        2,
		WorkerPollInterval: 10 * time.Millisecond,
		ItemTimeout:        5 * time.Second,
		DrainTimeout:       5 * time.Second,
		StuckItemThreshold: time.Minute,
		MaxAttempts:        3,
		RetryBaseDelay:     2 * time.Second,
		NotifyMinTier:      "high",
	}
}

func newTestOrchestrator(
	t *testing.T,
	store *mockStore,
	sentiment *stubSentiment,
	entities *stubEntities,
	notifier *recordingNotifier,
) *Orchestrator {
	t.Helper()

	logger := zerolog.Nop()

	return New(testConfig(), store, dedup.New(store, &logger), sentiment, entities, notifier, &logger)
}

func queuedReview(id, tenant, content string) *db.QueueItem {
	return &db.QueueItem{
		ID: id,
		Item: domain.RawItem{
			ID:       id,
			TenantID: tenant,
			Source:   domain.SourceReviewSite,
			Kind:     domain.KindReview,
			Content:  content,
			Metadata: domain.ItemMetadata{
				SubjectID: "biz-1",
				Timestamp: "2026-08-20T10:00:00Z",
			},
			CreatedAt: time.Now(),
		},
	}
}

func TestProcessItemHappyPath(t *testing.T) {
	store := newMockStore()
	notifier := newRecordingNotifier()
	sentiment := &stubSentiment{result: domain.Sentiment{Score: -0.8, Magnitude: 0.9, Label: domain.SentimentNegative}}
	entities := &stubEntities{}
	orch := newTestOrchestrator(t, store, sentiment, entities, notifier)

	claimed := queuedReview("q-1", "tenant-a", "terrible service, never again")
	claimed.AttemptCount = 1

	orch.processItem(context.Background(), claimed)

	require.Len(t, store.persisted, 1)
	item := store.persisted[0]
	assert.Equal(t, "tenant-a", item.TenantID)
	assert.NotEmpty(t, item.Fingerprint)
	assert.Equal(t, domain.SentimentNegative, item.Sentiment.Label)
	assert.False(t, item.Degraded)
	assert.Equal(t, db.QueueStatusDone, store.resolved["q-1"])

	// strong negative review on a trusted source lands above the notify floor
	assert.True(t, item.Tier.AtLeast(domain.TierHigh))
	assert.Equal(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), item.OccurredAt.UTC())

	select {
	case <-notifier.done:
	case <-time.After(time.Second):
		t.Fatal("expected a notification for a high-tier item")
	}

	assert.Equal(t, 1, notifier.count())
}

func TestProcessItemDuplicateDiscarded(t *testing.T) {
	store := newMockStore()
	notifier := newRecordingNotifier()
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, notifier)

	first := queuedReview("q-1", "tenant-a", "same words")
	second := queuedReview("q-2", "tenant-a", "same words")
	first.AttemptCount, second.AttemptCount = 1, 1

	orch.processItem(context.Background(), first)
	orch.processItem(context.Background(), second)

	require.Len(t, store.persisted, 1)
	assert.Equal(t, db.QueueStatusDone, store.resolved["q-1"])
	assert.Equal(t, db.QueueStatusDuplicate, store.resolved["q-2"])
}

func TestProcessItemDuplicateAcrossTenants(t *testing.T) {
	store := newMockStore()
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	first := queuedReview("q-1", "tenant-a", "same words")
	second := queuedReview("q-2", "tenant-b", "same words")
	first.AttemptCount, second.AttemptCount = 1, 1

	orch.processItem(context.Background(), first)
	orch.processItem(context.Background(), second)

	// identical content under different tenants is not a duplicate
	require.Len(t, store.persisted, 2)
	assert.Equal(t, db.QueueStatusDone, store.resolved["q-1"])
	assert.Equal(t, db.QueueStatusDone, store.resolved["q-2"])
}

func TestProcessItemAdapterFailureDegrades(t *testing.T) {
	store := newMockStore()
	sentiment := &stubSentiment{err: errors.New("provider down")}
	entities := &stubEntities{err: errors.New("provider down")}
	orch := newTestOrchestrator(t, store, sentiment, entities, newRecordingNotifier())

	claimed := queuedReview("q-1", "tenant-a", "whatever")
	claimed.AttemptCount = 1

	orch.processItem(context.Background(), claimed)

	require.Len(t, store.persisted, 1)
	item := store.persisted[0]
	assert.True(t, item.Degraded)
	assert.Equal(t, domain.SentimentNeutral, item.Sentiment.Label)
	assert.Zero(t, item.Sentiment.Score)
	assert.Empty(t, item.Entities)
	assert.Equal(t, db.QueueStatusDone, store.resolved["q-1"])
	assert.Contains(t, store.qualityEvents, db.QualityReasonSentimentFallback)
	assert.Contains(t, store.qualityEvents, db.QualityReasonEntityFallback)
}

func TestProcessItemDedupRecheckOnStoreFailure(t *testing.T) {
	store := newMockStore()
	store.existsErr = errors.New("store unavailable")
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	claimed := queuedReview("q-1", "tenant-a", "whatever")
	claimed.AttemptCount = 1

	orch.processItem(context.Background(), claimed)

	// fail-closed: the item proceeds flagged, relying on the unique
	// constraint to catch a true duplicate at insert time
	require.Len(t, store.persisted, 1)
	assert.True(t, store.persisted[0].DedupRecheck)
	assert.Contains(t, store.qualityEvents, db.QualityReasonDedupRecheck)
}

func TestProcessItemInsertConflictIsTerminal(t *testing.T) {
	store := newMockStore()
	store.insertErrs = []error{apperrors.ErrDuplicateItem}
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	claimed := queuedReview("q-1", "tenant-a", "raced with a twin")
	claimed.AttemptCount = 1

	orch.processItem(context.Background(), claimed)

	// a unique-constraint conflict means another worker won the race; the
	// loser is discarded, not retried
	assert.Empty(t, store.persisted)
	assert.Empty(t, store.retries)
	assert.Equal(t, db.QueueStatusDuplicate, store.resolved["q-1"])
}

func TestProcessItemRetrySchedule(t *testing.T) {
	store := newMockStore()
	store.insertErrs = []error{errors.New("connection reset")}
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	for attempt, wantDelay := range map[int]time.Duration{
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
	} {
		store.retries = nil
		store.insertErrs = []error{errors.New("connection reset")}

		claimed := queuedReview("q-1", "tenant-a", "flaky")
		claimed.AttemptCount = attempt

		before := time.Now()
		orch.processItem(context.Background(), claimed)

		require.Len(t, store.retries, 1, "attempt %d", attempt)
		gap := store.retries[0].Sub(before)
		assert.InDelta(t, wantDelay.Seconds(), gap.Seconds(), 0.5, "attempt %d", attempt)
		assert.Empty(t, store.deadLettered)
	}
}

func TestProcessItemDeadLetterAfterExhaustion(t *testing.T) {
	store := newMockStore()
	store.insertErrs = []error{errors.New("connection reset")}
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	claimed := queuedReview("q-1", "tenant-a", "always fails")
	claimed.AttemptCount = 4

	orch.processItem(context.Background(), claimed)

	assert.Empty(t, store.retries)
	require.Len(t, store.deadLettered, 1)
	assert.Equal(t, "q-1", store.deadLettered[0])
}

func TestProcessItemTimestampFallback(t *testing.T) {
	store := newMockStore()
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	claimed := queuedReview("q-1", "tenant-a", "bad clock")
	claimed.Item.Metadata.Timestamp = "not a timestamp"
	claimed.AttemptCount = 1

	before := time.Now()
	orch.processItem(context.Background(), claimed)

	require.Len(t, store.persisted, 1)
	assert.WithinDuration(t, before, store.persisted[0].OccurredAt, 5*time.Second)
	assert.Contains(t, store.qualityEvents, db.QualityReasonTimestampParse)
}

func TestProcessItemLowTierSkipsNotification(t *testing.T) {
	store := newMockStore()
	notifier := newRecordingNotifier()
	sentiment := &stubSentiment{result: domain.Sentiment{Score: 0.05, Magnitude: 0.1, Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, notifier)

	claimed := queuedReview("q-1", "tenant-a", "meh")
	claimed.Item.Source = domain.SourceWebSearch
	claimed.Item.Kind = domain.KindMention
	claimed.AttemptCount = 1

	orch.processItem(context.Background(), claimed)

	require.Len(t, store.persisted, 1)
	assert.False(t, store.persisted[0].Tier.AtLeast(domain.TierHigh))

	select {
	case <-notifier.done:
		t.Fatal("no notification expected below the configured tier")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunAndDrainAndStop(t *testing.T) {
	items := make([]*db.QueueItem, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, queuedReview(
			"q-"+string(rune('a'+i)), "tenant-a", "unique content number "+string(rune('a'+i)),
		))
	}

	store := newMockStore(items...)
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, sentiment, &stubEntities{}, newRecordingNotifier())

	runErr := make(chan error, 1)
	go func() {
		runErr <- orch.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()

		return len(store.persisted) == 5
	}, 5*time.Second, 10*time.Millisecond)

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, orch.DrainAndStop(drainCtx))

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after drain")
	}
}
