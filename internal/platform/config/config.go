package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Orchestrator
	WorkerCount        int           `env:"WORKER_COUNT" envDefault:"4"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	ItemTimeout        time.Duration `env:"ITEM_TIMEOUT" envDefault:"60s"`
	DrainTimeout       time.Duration `env:"DRAIN_TIMEOUT" envDefault:"30s"`
	StuckItemThreshold time.Duration `env:"STUCK_ITEM_THRESHOLD" envDefault:"5m"`

	// Queue retry policy
	MaxAttempts    int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"QUEUE_RETRY_BASE_DELAY" envDefault:"2s"`

	// Enrichment adapters
	SentimentProvider string        `env:"SENTIMENT_PROVIDER" envDefault:"openai"`
	EntityProvider    string        `env:"ENTITY_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AdapterTimeout    time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"15s"`
	AdapterRPS        int           `env:"ADAPTER_RATE_LIMIT_RPS" envDefault:"2"`

	// Notifier
	NotifierEnabled  bool   `env:"NOTIFIER_ENABLED" envDefault:"false"`
	NotifierBotToken string `env:"NOTIFIER_BOT_TOKEN"`
	NotifierChatID   int64  `env:"NOTIFIER_CHAT_ID"`
	NotifyMinTier    string `env:"NOTIFY_MIN_TIER" envDefault:"high"`

	// News-feed collector
	CollectorFeedURLs     []string      `env:"COLLECTOR_FEED_URLS" envSeparator:","`
	CollectorTenantID     string        `env:"COLLECTOR_TENANT_ID"`
	CollectorSubjectID    string        `env:"COLLECTOR_SUBJECT_ID"`
	CollectorPollInterval time.Duration `env:"COLLECTOR_POLL_INTERVAL" envDefault:"5m"`
	CollectorFetchTimeout time.Duration `env:"COLLECTOR_FETCH_TIMEOUT" envDefault:"30s"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
