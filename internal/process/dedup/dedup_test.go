package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

var errStoreDown = errors.New("store unavailable")

// mockRepository implements Repository for testing.
type mockRepository struct {
	existing map[string]bool // key: tenantID + "/" + fingerprint
	err      error
	calls    []string
}

func (m *mockRepository) ProcessedItemExists(_ context.Context, tenantID, fingerprint string) (bool, error) {
	key := tenantID + "/" + fingerprint
	m.calls = append(m.calls, key)

	if m.err != nil {
		return false, m.err
	}

	return m.existing[key], nil
}

func newTestDeduplicator(repo *mockRepository) Deduplicator {
	logger := zerolog.Nop()
	return New(repo, &logger)
}

func TestCheck_NotDuplicate(t *testing.T) {
	d := newTestDeduplicator(&mockRepository{})

	res := d.Check(context.Background(), "tenant-a", "fp-1")
	if res.Duplicate || res.Recheck {
		t.Errorf("Check() = %+v, want not duplicate, no recheck", res)
	}
}

func TestCheck_Duplicate(t *testing.T) {
	repo := &mockRepository{existing: map[string]bool{"tenant-a/fp-1": true}}
	d := newTestDeduplicator(repo)

	res := d.Check(context.Background(), "tenant-a", "fp-1")
	if !res.Duplicate {
		t.Errorf("Check() = %+v, want duplicate", res)
	}
}

func TestCheck_TenantScoped(t *testing.T) {
	repo := &mockRepository{existing: map[string]bool{"tenant-a/fp-1": true}}
	d := newTestDeduplicator(repo)

	res := d.Check(context.Background(), "tenant-b", "fp-1")
	if res.Duplicate {
		t.Error("identical fingerprint under another tenant must not be a duplicate")
	}

	if len(repo.calls) != 1 || repo.calls[0] != "tenant-b/fp-1" {
		t.Errorf("store queried with %v, want tenant-scoped key", repo.calls)
	}
}

func TestCheck_StoreUnavailableFailsClosed(t *testing.T) {
	d := newTestDeduplicator(&mockRepository{err: errStoreDown})

	res := d.Check(context.Background(), "tenant-a", "fp-1")
	if res.Duplicate {
		t.Error("store failure must not report a duplicate")
	}

	if !res.Recheck {
		t.Error("store failure must flag the item for a retry-safe recheck")
	}
}
