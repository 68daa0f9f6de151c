package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

// Queue item statuses.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusDone       = "done"
	QueueStatusDuplicate  = "duplicate"
	QueueStatusDeadLetter = "dead_letter"
)

// QueueItem is a claimed unit of work from the ingestion queue.
type QueueItem struct {
	ID            string
	Item          domain.RawItem
	QueuePriority int
	AttemptCount  int
}

// DeadLetterItem is a dead-lettered queue row surfaced for inspection.
type DeadLetterItem struct {
	ID           string
	TenantID     string
	Source       string
	Kind         string
	AttemptCount int
	LastError    string
	EnqueuedAt   time.Time
	UpdatedAt    time.Time
}

// EnqueueRawItem inserts a validated raw item into the durable queue.
func (db *DB) EnqueueRawItem(ctx context.Context, item domain.RawItem, queuePriority int) (string, error) {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal item metadata: %w", err)
	}

	rawPayload := item.RawJSON
	if len(rawPayload) == 0 {
		rawPayload = []byte("{}")
	}

	var id pgtype.UUID

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO raw_item_queue (tenant_id, source, kind, content, metadata, raw_payload, queue_priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, item.TenantID, string(item.Source), string(item.Kind), SanitizeUTF8(item.Content),
		metadata, rawPayload, queuePriority).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("enqueue raw item: %w", err)
	}

	return fromUUID(id), nil
}

// ClaimNextRawItem claims the next due pending item, highest queue priority
// first, FIFO within a priority. Returns nil when nothing is claimable.
func (db *DB) ClaimNextRawItem(ctx context.Context) (*QueueItem, error) {
	var (
		id         pgtype.UUID
		tenantID   string
		source     string
		kind       string
		content    string
		metadata   []byte
		rawPayload []byte
		priority   int
		attempts   int
		enqueuedAt pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		WITH picked AS (
			SELECT id
			FROM raw_item_queue
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= now())
			ORDER BY queue_priority DESC, enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE raw_item_queue q
		SET status = $2,
			attempt_count = q.attempt_count + 1,
			updated_at = now()
		FROM picked
		WHERE q.id = picked.id
		RETURNING q.id, q.tenant_id, q.source, q.kind, q.content, q.metadata,
			q.raw_payload, q.queue_priority, q.attempt_count, q.enqueued_at
	`, QueueStatusPending, QueueStatusProcessing).Scan(
		&id, &tenantID, &source, &kind, &content, &metadata,
		&rawPayload, &priority, &attempts, &enqueuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // intentional: empty queue is not an error
		}

		return nil, fmt.Errorf("claim next raw item: %w", err)
	}

	var meta domain.ItemMetadata
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal item metadata: %w", err)
	}

	return &QueueItem{
		ID: fromUUID(id),
		Item: domain.RawItem{
			ID:        fromUUID(id),
			TenantID:  tenantID,
			Source:    domain.Source(source),
			Kind:      domain.Kind(kind),
			Content:   content,
			Metadata:  meta,
			RawJSON:   rawPayload,
			CreatedAt: fromTimestamptz(enqueuedAt),
		},
		QueuePriority: priority,
		AttemptCount:  attempts,
	}, nil
}

// ResolveQueueItem moves a claimed item to a terminal queue status.
func (db *DB) ResolveQueueItem(ctx context.Context, queueID, status string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE raw_item_queue
		SET status = $2, next_retry_at = NULL, updated_at = now()
		WHERE id = $1
	`, toUUID(queueID), status); err != nil {
		return fmt.Errorf("resolve queue item: %w", err)
	}

	return nil
}

// ScheduleRetry returns a claimed item to pending with a retry deadline.
func (db *DB) ScheduleRetry(ctx context.Context, queueID, lastError string, retryAt time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE raw_item_queue
		SET status = $2, last_error = $3, next_retry_at = $4, updated_at = now()
		WHERE id = $1
	`, toUUID(queueID), QueueStatusPending, toText(lastError), toTimestamptz(retryAt)); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	return nil
}

// MarkDeadLettered moves an item to the dead-letter state, keeping its
// last error for operator inspection.
func (db *DB) MarkDeadLettered(ctx context.Context, queueID, lastError string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE raw_item_queue
		SET status = $2, last_error = $3, next_retry_at = NULL, updated_at = now()
		WHERE id = $1
	`, toUUID(queueID), QueueStatusDeadLetter, toText(lastError)); err != nil {
		return fmt.Errorf("mark dead lettered: %w", err)
	}

	return nil
}

// GetBacklogCount returns the number of pending queue items.
func (db *DB) GetBacklogCount(ctx context.Context) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM raw_item_queue WHERE status = $1
	`, QueueStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("get backlog count: %w", err)
	}

	return count, nil
}

// GetDeadLetterCount returns the number of dead-lettered items.
func (db *DB) GetDeadLetterCount(ctx context.Context) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM raw_item_queue WHERE status = $1
	`, QueueStatusDeadLetter).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("get dead letter count: %w", err)
	}

	return count, nil
}

// ListDeadLetterItems returns dead-lettered rows, newest first.
func (db *DB) ListDeadLetterItems(ctx context.Context, limit int) ([]DeadLetterItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, tenant_id, source, kind, attempt_count, COALESCE(last_error, ''), enqueued_at, updated_at
		FROM raw_item_queue
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, QueueStatusDeadLetter, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letter items: %w", err)
	}
	defer rows.Close()

	items := make([]DeadLetterItem, 0, limit)

	for rows.Next() {
		var (
			entry      DeadLetterItem
			id         pgtype.UUID
			enqueuedAt pgtype.Timestamptz
			updatedAt  pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &entry.TenantID, &entry.Source, &entry.Kind,
			&entry.AttemptCount, &entry.LastError, &enqueuedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}

		entry.ID = fromUUID(id)
		entry.EnqueuedAt = fromTimestamptz(enqueuedAt)
		entry.UpdatedAt = fromTimestamptz(updatedAt)
		items = append(items, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letter rows: %w", err)
	}

	return items, nil
}

// RecoverStuckItems returns items claimed longer than threshold ago back
// to pending. Handles workers that crashed mid-item.
func (db *DB) RecoverStuckItems(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE raw_item_queue
		SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at < now() - $3::interval
	`, QueueStatusPending, QueueStatusProcessing, threshold.String())
	if err != nil {
		return 0, fmt.Errorf("recover stuck items: %w", err)
	}

	return tag.RowsAffected(), nil
}
