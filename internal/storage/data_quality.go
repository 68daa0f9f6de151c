package db

import (
	"context"
	"fmt"
	"time"
)

// Data-quality event reasons.
const (
	QualityReasonTimestampParse    = "timestamp_parse_failed"
	QualityReasonSentimentFallback = "sentiment_degraded"
	QualityReasonEntityFallback    = "entity_degraded"
	QualityReasonDedupRecheck      = "dedup_recheck"
)

// QualityReasonStat aggregates data-quality events by reason.
type QualityReasonStat struct {
	Reason string
	Count  int
}

// SaveDataQualityEvent records a recovered data-quality problem for an
// item, keeping only the latest event per (queue item, reason).
func (db *DB) SaveDataQualityEvent(ctx context.Context, queueID, reason, detail string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO data_quality_log (queue_id, reason, detail)
		VALUES ($1, $2, $3)
		ON CONFLICT (queue_id, reason) DO UPDATE SET
			detail = EXCLUDED.detail,
			updated_at = now()
	`, toUUID(queueID), reason, toText(detail))
	if err != nil {
		return fmt.Errorf("save data quality event: %w", err)
	}

	return nil
}

// GetQualityReasonStats aggregates recent data-quality events by reason.
func (db *DB) GetQualityReasonStats(ctx context.Context, since time.Time, limit int) ([]QualityReasonStat, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT reason, COUNT(*)::int
		FROM data_quality_log
		WHERE created_at >= $1
		GROUP BY reason
		ORDER BY COUNT(*) DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query quality reason stats: %w", err)
	}
	defer rows.Close()

	stats := make([]QualityReasonStat, 0, limit)

	for rows.Next() {
		var entry QualityReasonStat
		if err := rows.Scan(&entry.Reason, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan quality reason stat row: %w", err)
		}

		stats = append(stats, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quality reason stats rows: %w", err)
	}

	return stats, nil
}
