package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for loopreach-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Stages    StageConfig     `yaml:"stages"`
	LLM       LLMConfig       `yaml:"llm"`
	Channels  ChannelConfig   `yaml:"channels"`
}

// AuthConfig holds JWT verification settings. Tokens are HMAC-signed and
// carry the creator ID in the "cid" claim.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// SigningSecret is the shared HMAC secret. Secret - not in YAML.
	SigningSecret string `yaml:"-" env:"AUTH_SIGNING_SECRET"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"loopreach"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"loopreach_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// URL assembles a pgx-compatible connection string.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds the optional Redis cache used for event
// idempotency-key deduplication. Empty host disables it.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// QueueConfig holds Kafka job-queue settings.
type QueueConfig struct {
	BrokersStr    string `yaml:"brokers" env:"QUEUE_BROKERS" env-default:"localhost:9092"`
	ConsumerGroup string `yaml:"consumer_group" env:"QUEUE_CONSUMER_GROUP" env-default:"loopreach-workers"`

	EvaluationTopic string `yaml:"evaluation_topic" env:"QUEUE_EVALUATION_TOPIC" env-default:"agent.evaluations"`
	DeadLetterTopic string `yaml:"dead_letter_topic" env:"QUEUE_DEAD_LETTER_TOPIC" env-default:"agent.evaluations.dlq"`

	// Workers is the number of concurrent job consumers.
	Workers int `yaml:"workers" env:"QUEUE_WORKERS" env-default:"4"`

	// MaxRetries bounds in-process attempts before a job is dead-lettered.
	MaxRetries int `yaml:"max_retries" env:"QUEUE_MAX_RETRIES" env-default:"3"`
}

// Brokers returns the parsed broker list.
func (c *QueueConfig) Brokers() []string {
	parts := strings.Split(c.BrokersStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SchedulerConfig drives the periodic action sweep.
type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SCHEDULER_SWEEP_INTERVAL" env-default:"30s"`
	BatchSize     int           `yaml:"batch_size" env:"SCHEDULER_BATCH_SIZE" env-default:"100"`
}

// StageConfig holds the stage-transition thresholds. The demo numbers
// from the reference flows are defaults, not invariants.
type StageConfig struct {
	InterestedScore int64 `yaml:"interested_score" env:"STAGE_INTERESTED_SCORE" env-default:"2"`
	EngagedScore    int64 `yaml:"engaged_score" env:"STAGE_ENGAGED_SCORE" env-default:"5"`

	PageViewWeight         int64 `yaml:"page_view_weight" env:"STAGE_PAGE_VIEW_WEIGHT" env-default:"1"`
	EmailOpenedWeight      int64 `yaml:"email_opened_weight" env:"STAGE_EMAIL_OPENED_WEIGHT" env-default:"2"`
	WhatsAppReceivedWeight int64 `yaml:"whatsapp_received_weight" env:"STAGE_WHATSAPP_RECEIVED_WEIGHT" env-default:"3"`

	// ConversionEventsStr lists event types that promote a consumer
	// straight to converted, comma-separated.
	ConversionEventsStr string `yaml:"conversion_events" env:"STAGE_CONVERSION_EVENTS" env-default:"payment_success,booking_created"`
}

// ConversionEvents returns the parsed conversion event type set.
func (c *StageConfig) ConversionEvents() map[string]bool {
	out := make(map[string]bool)
	for _, p := range strings.Split(c.ConversionEventsStr, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out[trimmed] = true
		}
	}
	return out
}

// LLMConfig configures the text-generation dependency for graph agents.
type LLMConfig struct {
	// Provider selects the client: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	Timeout     time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`
	Temperature float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.3"`
}

// ChannelConfig holds provider endpoints for the channel senders. Empty
// endpoints fall back to the logging no-op sender for local development.
type ChannelConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"CHANNEL_TIMEOUT" env-default:"15s"`

	EmailEndpoint string `yaml:"email_endpoint" env:"CHANNEL_EMAIL_ENDPOINT" env-default:""`
	EmailAPIKey   string `yaml:"-" env:"CHANNEL_EMAIL_API_KEY"` // Secret - not in YAML
	EmailFrom     string `yaml:"email_from" env:"CHANNEL_EMAIL_FROM" env-default:""`

	WhatsAppEndpoint string `yaml:"whatsapp_endpoint" env:"CHANNEL_WHATSAPP_ENDPOINT" env-default:""`
	WhatsAppSID      string `yaml:"-" env:"CHANNEL_WHATSAPP_SID"`   // Secret - not in YAML
	WhatsAppToken    string `yaml:"-" env:"CHANNEL_WHATSAPP_TOKEN"` // Secret - not in YAML
	WhatsAppFrom     string `yaml:"whatsapp_from" env:"CHANNEL_WHATSAPP_FROM" env-default:""`

	CallEndpoint    string `yaml:"call_endpoint" env:"CHANNEL_CALL_ENDPOINT" env-default:""`
	PaymentEndpoint string `yaml:"payment_endpoint" env:"CHANNEL_PAYMENT_ENDPOINT" env-default:""`
	PaymentAPIKey   string `yaml:"-" env:"CHANNEL_PAYMENT_API_KEY"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only, for
// deployments without a config file.
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.EnableVerification && c.Auth.SigningSecret == "" {
		return fmt.Errorf("AUTH_SIGNING_SECRET is required when auth verification is enabled")
	}
	if c.Stages.InterestedScore > c.Stages.EngagedScore {
		return fmt.Errorf("stage thresholds inverted: interested %d > engaged %d",
			c.Stages.InterestedScore, c.Stages.EngagedScore)
	}
	if len(c.Queue.Brokers()) == 0 {
		return fmt.Errorf("queue brokers must not be empty")
	}
	return nil
}
