package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

func TestFormatAlert_EscapesUserContent(t *testing.T) {
	item := &domain.ProcessedItem{
		RawItem: domain.RawItem{
			Source:  domain.SourceReviewSite,
			Kind:    domain.KindPriceChange,
			Content: `their plan is <$10 & "unlimited"`,
			Metadata: domain.ItemMetadata{
				CompetitorID: "acme<1>",
			},
		},
		Tier: domain.TierCritical,
		Insights: []domain.Insight{
			{Category: domain.CategoryCompetitorMention, Text: "competitor mention(s): Bob <Discount> Movers"},
		},
	}

	got := formatAlert(item)

	for _, raw := range []string{"<$10", "<Discount>", "acme<1>", `& "`} {
		if strings.Contains(got, raw) {
			t.Errorf("alert contains unescaped %q:\n%s", raw, got)
		}
	}

	for _, escaped := range []string{"&lt;$10 &amp;", "Bob &lt;Discount&gt; Movers", "acme&lt;1&gt;"} {
		if !strings.Contains(got, escaped) {
			t.Errorf("alert missing escaped %q:\n%s", escaped, got)
		}
	}

	// the bold heading markup itself must survive escaping
	if !strings.Contains(got, "<b>CRITICAL competitor signal</b>") {
		t.Errorf("alert missing heading markup:\n%s", got)
	}
}

func TestFormatAlert_TruncatesOnRuneBoundary(t *testing.T) {
	// place a multi-byte rune straddling the preview cut
	content := strings.Repeat("a", maxContentPreview-1) + "日本語テキスト"

	item := &domain.ProcessedItem{
		RawItem: domain.RawItem{
			Source:  domain.SourceReviewSite,
			Kind:    domain.KindReview,
			Content: content,
		},
		Tier: domain.TierHigh,
	}

	got := formatAlert(item)

	if !utf8.ValidString(got) {
		t.Fatalf("alert is not valid UTF-8:\n%q", got)
	}

	if !strings.Contains(got, "…") {
		t.Errorf("long content not marked as truncated:\n%s", got)
	}

	if strings.Contains(got, "日") {
		t.Errorf("rune past the cut survived truncation:\n%s", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"}, // é is 2 bytes; cutting mid-rune walks back
		{"日本", 3, "日"},
		{"日本", 2, ""},
	}

	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
