// Package notify delivers high-priority findings to a downstream alert
// sink. Notification is fire-and-forget: a failed delivery is logged and
// counted but never fails the item that triggered it.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

// Notifier receives items whose tier crossed the alert threshold.
type Notifier interface {
	Notify(ctx context.Context, item *domain.ProcessedItem) error
}

// logNotifier writes alerts to the application log. Used when no external
// sink is configured.
type logNotifier struct {
	logger *zerolog.Logger
}

// NewLog creates a log-only notifier.
func NewLog(logger *zerolog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, item *domain.ProcessedItem) error {
	n.logger.Info().
		Str("tenant_id", item.TenantID).
		Str("tier", string(item.Tier)).
		Str("kind", string(item.Kind)).
		Strs("insights", item.InsightTexts()).
		Msg("high-priority competitor signal")

	return nil
}
