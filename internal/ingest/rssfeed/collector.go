// Package rssfeed polls configured RSS/Atom feeds and turns new entries
// into raw queue items. It is one producer among several; anything able to
// call the queue ingress can feed the pipeline.
package rssfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
	"github.com/rivalscope/intel-pipeline/internal/platform/config"
	"github.com/rivalscope/intel-pipeline/internal/platform/observability"
	"github.com/rivalscope/intel-pipeline/internal/platform/worker"
)

// seenCapPerFeed bounds the in-memory GUID set per feed. Entries beyond
// the cap are re-enqueued and caught by downstream deduplication instead.
const seenCapPerFeed = 2048

// Enqueuer accepts a raw item into the ingestion queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, item domain.RawItem) (string, error)
}

// Collector polls feeds on an interval and enqueues entries it has not
// seen before in this process lifetime.
type Collector struct {
	cfg     *config.Config
	ingress Enqueuer
	parser  *gofeed.Parser
	logger  *zerolog.Logger

	mu   sync.Mutex
	seen map[string]map[string]struct{} // feed URL -> entry GUIDs
}

func New(cfg *config.Config, ingress Enqueuer, logger *zerolog.Logger) *Collector {
	return &Collector{
		cfg:     cfg,
		ingress: ingress,
		parser:  gofeed.NewParser(),
		logger:  logger,
		seen:    make(map[string]map[string]struct{}),
	}
}

// Run polls all configured feeds until the context is canceled.
func (c *Collector) Run(ctx context.Context) error {
	if len(c.cfg.CollectorFeedURLs) == 0 {
		return fmt.Errorf("no feed URLs configured")
	}

	if c.cfg.CollectorTenantID == "" {
		return fmt.Errorf("collector tenant ID is required")
	}

	return worker.Loop(ctx, worker.Config{ //nolint:wrapcheck
		Name:         "feed-collector",
		PollInterval: c.cfg.CollectorPollInterval,
		Process:      c.pollAll,
		Logger:       c.logger,
	})
}

func (c *Collector) pollAll(ctx context.Context) error {
	for _, feedURL := range c.cfg.CollectorFeedURLs {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck
		}

		if err := c.pollFeed(ctx, feedURL); err != nil {
			// one broken feed must not starve the others
			c.logger.Warn().Err(err).Str("feed", feedURL).Msg("feed poll failed")
		}
	}

	return nil
}

func (c *Collector) pollFeed(ctx context.Context, feedURL string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.CollectorFetchTimeout)
	defer cancel()

	feed, err := c.parser.ParseURLWithContext(feedURL, fetchCtx)
	if err != nil {
		return fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	enqueued := 0

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}

		guid := entryGUID(entry)
		if c.alreadySeen(feedURL, guid) {
			continue
		}

		item := c.toRawItem(entry)

		if _, err := c.ingress.Enqueue(ctx, item); err != nil {
			c.logger.Warn().Err(err).Str("feed", feedURL).Str("entry", guid).Msg("failed to enqueue feed entry")
			continue
		}

		c.markSeen(feedURL, guid)
		observability.FeedItemsCollected.WithLabelValues(feedURL).Inc()
		enqueued++
	}

	if enqueued > 0 {
		c.logger.Info().Str("feed", feedURL).Int("enqueued", enqueued).Msg("collected feed entries")
	}

	return nil
}

func (c *Collector) toRawItem(entry *gofeed.Item) domain.RawItem {
	var builder strings.Builder

	builder.WriteString(entry.Title)

	if entry.Description != "" {
		builder.WriteString("\n\n")
		builder.WriteString(entry.Description)
	}

	metadata := domain.ItemMetadata{
		Timestamp: entry.Published,
		SourceURL: entry.Link,
		SubjectID: c.cfg.CollectorSubjectID,
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		metadata.Author = entry.Authors[0].Name
	}

	rawJSON, err := json.Marshal(entry)
	if err != nil {
		rawJSON = nil
	}

	return domain.RawItem{
		TenantID: c.cfg.CollectorTenantID,
		Source:   domain.SourceNewsFeed,
		Kind:     domain.KindMention,
		Content:  builder.String(),
		Metadata: metadata,
		RawJSON:  rawJSON,
	}
}

func (c *Collector) alreadySeen(feedURL, guid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[feedURL][guid]

	return ok
}

func (c *Collector) markSeen(feedURL, guid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, ok := c.seen[feedURL]
	if !ok || len(entries) >= seenCapPerFeed {
		entries = make(map[string]struct{}, 64)
		c.seen[feedURL] = entries
	}

	entries[guid] = struct{}{}
}

func entryGUID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}

	return entry.Link
}
