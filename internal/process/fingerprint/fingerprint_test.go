package fingerprint

import (
	"testing"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

func baseItem() domain.RawItem {
	return domain.RawItem{
		TenantID: "tenant-a",
		Source:   domain.SourceReviewSite,
		Kind:     domain.KindReview,
		Content:  "service was slow and overpriced",
		Metadata: domain.ItemMetadata{
			SubjectID: "biz-1",
			Timestamp: "2026-08-01T10:00:00Z",
		},
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(baseItem())
	b := Compute(baseItem())

	if a != b {
		t.Errorf("Compute() not deterministic: %q != %q", a, b)
	}

	if len(a) != 64 {
		t.Errorf("Compute() digest length = %d, want 64", len(a))
	}
}

func TestCompute_IgnoresTimestampAndTenant(t *testing.T) {
	first := baseItem()

	second := baseItem()
	second.TenantID = "tenant-b"
	second.Metadata.Timestamp = "2026-08-15T23:59:59Z"
	second.Metadata.Author = "someone else"

	if Compute(first) != Compute(second) {
		t.Error("fingerprint must not depend on tenant, timestamp, or author")
	}
}

func TestCompute_SensitiveFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.RawItem)
	}{
		{"source", func(it *domain.RawItem) { it.Source = domain.SourceNewsFeed }},
		{"kind", func(it *domain.RawItem) { it.Kind = domain.KindMention }},
		{"content", func(it *domain.RawItem) { it.Content = "different text" }},
		{"subject", func(it *domain.RawItem) { it.Metadata.SubjectID = "biz-2" }},
	}

	base := Compute(baseItem())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := baseItem()
			tt.mutate(&item)

			if Compute(item) == base {
				t.Errorf("fingerprint unchanged after mutating %s", tt.name)
			}
		})
	}
}

func TestCompute_EmptyContent(t *testing.T) {
	item := domain.RawItem{TenantID: "tenant-a"}

	got := Compute(item)
	if got == "" {
		t.Fatal("Compute() returned empty digest for empty content")
	}

	// Still distinct per subject.
	other := item
	other.Metadata.SubjectID = "biz-9"

	if Compute(other) == got {
		t.Error("empty-content fingerprints must still vary by subject")
	}
}

func TestCompute_NoFieldBleed(t *testing.T) {
	a := domain.RawItem{Source: "ab", Kind: "c"}
	b := domain.RawItem{Source: "a", Kind: "bc"}

	if Compute(a) == Compute(b) {
		t.Error("adjacent fields must not produce ambiguous digests")
	}
}
