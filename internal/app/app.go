// Package app wires configuration, storage, adapters, and workers into the
// two runnable modes of the service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/enrich"
	"github.com/rivalscope/intel-pipeline/internal/ingest/rssfeed"
	"github.com/rivalscope/intel-pipeline/internal/notify"
	"github.com/rivalscope/intel-pipeline/internal/platform/config"
	"github.com/rivalscope/intel-pipeline/internal/platform/observability"
	"github.com/rivalscope/intel-pipeline/internal/process/dedup"
	"github.com/rivalscope/intel-pipeline/internal/process/pipeline"
	"github.com/rivalscope/intel-pipeline/internal/queue"
	db "github.com/rivalscope/intel-pipeline/internal/storage"
)

// Run modes.
const (
	ModeWorker    = "worker"
	ModeCollector = "collector"
)

// App holds the long-lived dependencies shared by all modes.
type App struct {
	cfg    *config.Config
	logger *zerolog.Logger
}

func New(cfg *config.Config, logger *zerolog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run connects storage, applies migrations, starts the health endpoint,
// and hands off to the selected mode until ctx is canceled.
func (a *App) Run(ctx context.Context, mode string) error {
	database, err := a.connectDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	health := observability.NewServer(database, a.cfg.HealthPort, a.logger)

	go func() {
		if err := health.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("health server exited")
		}
	}()

	switch mode {
	case ModeWorker:
		return a.runWorker(ctx, database)
	case ModeCollector:
		return a.runCollector(ctx, database)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (a *App) connectDatabase(ctx context.Context) (*db.DB, error) {
	opts := db.PoolOptions{
		MaxConns:          a.cfg.DBMaxConnections,
		MinConns:          a.cfg.DBMinConnections,
		MaxConnIdleTime:   a.cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   a.cfg.DBMaxConnLifetime,
		HealthCheckPeriod: a.cfg.DBHealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, a.cfg.PostgresDSN, opts, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return database, nil
}

func (a *App) runWorker(ctx context.Context, database *db.DB) error {
	sentiment, entities, err := a.buildEnrichment()
	if err != nil {
		return err
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		return err
	}

	orchestrator := pipeline.New(
		a.cfg,
		database,
		dedup.New(database, a.logger),
		sentiment,
		entities,
		notifier,
		a.logger,
	)

	a.logger.Info().
		Int("workers", a.cfg.WorkerCount).
		Str("sentiment_provider", string(sentiment.Name())).
		Str("entity_provider", string(entities.Name())).
		Msg("starting pipeline workers")

	runErr := make(chan error, 1)
	go func() {
		runErr <- orchestrator.Run(ctx)
	}()

	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("pipeline stopped: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Dur("timeout", a.cfg.DrainTimeout).Msg("shutdown requested, draining in-flight items")

	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.DrainTimeout)
	defer cancel()

	if err := orchestrator.DrainAndStop(drainCtx); err != nil {
		return fmt.Errorf("draining pipeline: %w", err)
	}

	<-runErr

	a.logger.Info().Msg("pipeline drained cleanly")

	return nil
}

func (a *App) runCollector(ctx context.Context, database *db.DB) error {
	ingress := queue.NewIngress(database, a.logger)
	collector := rssfeed.New(a.cfg, ingress, a.logger)

	a.logger.Info().
		Int("feeds", len(a.cfg.CollectorFeedURLs)).
		Str("tenant_id", a.cfg.CollectorTenantID).
		Msg("starting feed collector")

	if err := collector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("collector stopped: %w", err)
	}

	return nil
}

// buildEnrichment selects the sentiment and entity providers. The OpenAI
// pair shares one rate-limited client; the mock providers are deterministic
// and keyless for local development.
func (a *App) buildEnrichment() (enrich.SentimentAnalyzer, enrich.EntityExtractor, error) {
	var (
		openaiSentiment enrich.SentimentAnalyzer
		openaiEntities  enrich.EntityExtractor
	)

	needsOpenAI := a.cfg.SentimentProvider == string(enrich.ProviderOpenAI) ||
		a.cfg.EntityProvider == string(enrich.ProviderOpenAI)

	if needsOpenAI {
		if a.cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}

		openaiSentiment, openaiEntities = enrich.NewOpenAI(a.cfg, a.logger)
	}

	var sentiment enrich.SentimentAnalyzer

	switch a.cfg.SentimentProvider {
	case string(enrich.ProviderOpenAI):
		sentiment = openaiSentiment
	case string(enrich.ProviderMock):
		sentiment = enrich.NewMockSentiment()
	default:
		return nil, nil, fmt.Errorf("unknown sentiment provider %q", a.cfg.SentimentProvider)
	}

	var entities enrich.EntityExtractor

	switch a.cfg.EntityProvider {
	case string(enrich.ProviderOpenAI):
		entities = openaiEntities
	case string(enrich.ProviderMock):
		entities = enrich.NewMockEntities()
	default:
		return nil, nil, fmt.Errorf("unknown entity provider %q", a.cfg.EntityProvider)
	}

	return sentiment, entities, nil
}

func (a *App) buildNotifier() (notify.Notifier, error) {
	if !a.cfg.NotifierEnabled {
		return notify.NewLog(a.logger), nil
	}

	notifier, err := notify.NewTelegram(a.cfg.NotifierBotToken, a.cfg.NotifierChatID)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram notifier: %w", err)
	}

	return notifier, nil
}
