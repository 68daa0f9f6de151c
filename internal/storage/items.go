package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
	apperrors "github.com/rivalscope/intel-pipeline/internal/core/errors"
)

const uniqueViolationCode = "23505"

// ProcessedItemExists reports whether a fingerprint is already persisted
// for the tenant. Strictly tenant-scoped.
func (db *DB) ProcessedItemExists(ctx context.Context, tenantID, fingerprint string) (bool, error) {
	var exists bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_items
			WHERE tenant_id = $1 AND fingerprint = $2
		)
	`, tenantID, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("processed item exists: %w", err)
	}

	return exists, nil
}

// InsertProcessedItem persists an enriched item. Returns ErrDuplicateItem
// when (tenant_id, fingerprint) is already stored, which callers treat as
// the DuplicateDiscarded terminal state rather than a failure.
func (db *DB) InsertProcessedItem(ctx context.Context, item *domain.ProcessedItem) error {
	entities, err := json.Marshal(item.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	insightsJSON, err := json.Marshal(item.Insights)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}

	rawPayload := item.RawJSON
	if len(rawPayload) == 0 {
		rawPayload = []byte("{}")
	}

	var id pgtype.UUID

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO processed_items (
			queue_id, tenant_id, fingerprint, source, kind, content,
			author, rating, source_url, location, subject_id, competitor_id,
			sentiment_score, sentiment_magnitude, sentiment_label,
			entities, insights, tier, occurred_at, degraded, dedup_recheck, raw_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id
	`, toUUID(item.ID), item.TenantID, item.Fingerprint, string(item.Source), string(item.Kind),
		SanitizeUTF8(item.Content), toText(item.Metadata.Author), toFloat4Ptr(item.Metadata.Rating),
		toText(item.Metadata.SourceURL), toText(item.Metadata.Location),
		toText(item.Metadata.SubjectID), toText(item.Metadata.CompetitorID),
		item.Sentiment.Score, item.Sentiment.Magnitude, string(item.Sentiment.Label),
		entities, insightsJSON, string(item.Tier), toTimestamptz(item.OccurredAt),
		item.Degraded, item.DedupRecheck, rawPayload).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("insert processed item: %w", apperrors.ErrDuplicateItem)
		}

		return fmt.Errorf("insert processed item: %w", err)
	}

	return nil
}

// GetProcessedItem loads one stored item, tenant-scoped.
func (db *DB) GetProcessedItem(ctx context.Context, tenantID, fingerprint string) (*domain.ProcessedItem, error) {
	var (
		item         domain.ProcessedItem
		id           pgtype.UUID
		source       string
		kind         string
		label        string
		tier         string
		author       pgtype.Text
		rating       pgtype.Float4
		sourceURL    pgtype.Text
		location     pgtype.Text
		subjectID    pgtype.Text
		competitorID pgtype.Text
		entities     []byte
		insightsJSON []byte
		occurredAt   pgtype.Timestamptz
		processedAt  pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, fingerprint, source, kind, content,
			author, rating, source_url, location, subject_id, competitor_id,
			sentiment_score, sentiment_magnitude, sentiment_label,
			entities, insights, tier, occurred_at, degraded, dedup_recheck,
			raw_payload, processed_at
		FROM processed_items
		WHERE tenant_id = $1 AND fingerprint = $2
	`, tenantID, fingerprint).Scan(
		&id, &item.TenantID, &item.Fingerprint, &source, &kind, &item.Content,
		&author, &rating, &sourceURL, &location, &subjectID, &competitorID,
		&item.Sentiment.Score, &item.Sentiment.Magnitude, &label,
		&entities, &insightsJSON, &tier, &occurredAt, &item.Degraded, &item.DedupRecheck,
		&item.RawJSON, &processedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrItemNotFound
		}

		return nil, fmt.Errorf("get processed item: %w", err)
	}

	item.ID = fromUUID(id)
	item.Source = domain.Source(source)
	item.Kind = domain.Kind(kind)
	item.Sentiment.Label = domain.SentimentLabel(label)
	item.Tier = domain.PriorityTier(tier)
	item.OccurredAt = fromTimestamptz(occurredAt)
	item.ProcessedAt = fromTimestamptz(processedAt)
	item.Metadata = domain.ItemMetadata{
		Author:       fromText(author),
		Rating:       fromFloat4Ptr(rating),
		SourceURL:    fromText(sourceURL),
		Location:     fromText(location),
		SubjectID:    fromText(subjectID),
		CompetitorID: fromText(competitorID),
	}

	if err := json.Unmarshal(entities, &item.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}

	if err := json.Unmarshal(insightsJSON, &item.Insights); err != nil {
		return nil, fmt.Errorf("unmarshal insights: %w", err)
	}

	return &item, nil
}

// CountProcessedItems returns the number of stored items for a tenant.
func (db *DB) CountProcessedItems(ctx context.Context, tenantID string) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM processed_items WHERE tenant_id = $1
	`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count processed items: %w", err)
	}

	return count, nil
}
