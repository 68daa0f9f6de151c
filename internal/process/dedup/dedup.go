// Package dedup decides whether a fingerprint was already persisted for a
// tenant. Checks are always tenant-scoped; identical fingerprints under
// different tenants never collide.
package dedup

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/platform/observability"
)

// Repository is the slice of the processed store the deduplicator needs.
type Repository interface {
	ProcessedItemExists(ctx context.Context, tenantID, fingerprint string) (bool, error)
}

// Result is the outcome of a duplicate check.
type Result struct {
	Duplicate bool

	// Recheck is set when the store was unavailable and the check fell
	// back to "not a duplicate". Callers must keep the item retry-safe:
	// the store's (tenant, fingerprint) uniqueness constraint is the
	// enforcement point of record, so a duplicate slipping past a degraded
	// read is still caught at insert time.
	Recheck bool
}

// Deduplicator checks whether an item's fingerprint is already stored.
type Deduplicator interface {
	Check(ctx context.Context, tenantID, fingerprint string) Result
}

type storeDeduplicator struct {
	store  Repository
	logger *zerolog.Logger
}

// New returns a store-backed deduplicator. Store failures fail closed:
// duplicate persistence is preferred over data loss.
func New(store Repository, logger *zerolog.Logger) Deduplicator {
	return &storeDeduplicator{
		store:  store,
		logger: logger,
	}
}

func (d *storeDeduplicator) Check(ctx context.Context, tenantID, fingerprint string) Result {
	exists, err := d.store.ProcessedItemExists(ctx, tenantID, fingerprint)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("tenant_id", tenantID).
			Msg("dedup check degraded, store unavailable")
		observability.DedupRechecks.Inc()

		return Result{Duplicate: false, Recheck: true}
	}

	return Result{Duplicate: exists}
}
