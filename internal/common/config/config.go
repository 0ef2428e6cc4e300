// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Dispatch      DispatchConfig          `mapstructure:"dispatch"`
	Model         ModelConfig             `mapstructure:"model"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Dispatch Engine Config ---

// DispatchConfig holds the tunables of the offer pool and its maintenance.
type DispatchConfig struct {
	TargetPoolSize int           `mapstructure:"target_pool_size"` // outstanding offers per pending job (K)
	OfferTTL       int           `mapstructure:"offer_ttl"`        // seconds before an offered entry times out
	SweepSchedule  string        `mapstructure:"sweep_schedule"`   // cron spec for the expiry/replenish sweep
	ThrottleTTL    int           `mapstructure:"throttle_ttl"`     // seconds between replenishment runs per job
	WorkerCacheTTL int           `mapstructure:"worker_cache_ttl"` // seconds to cache worker profile stats
	Scoring        ScoringConfig `mapstructure:"scoring"`
}

// ScoringConfig controls the heuristic fallback scorer.
type ScoringConfig struct {
	Seed           int64   `mapstructure:"seed"` // 0 = time-seeded
	RatingWeight   float64 `mapstructure:"rating_weight"`
	DistanceWeight float64 `mapstructure:"distance_weight"`
	NoiseWeight    float64 `mapstructure:"noise_weight"`
}

// ModelConfig addresses the external inference service and its metadata.
type ModelConfig struct {
	MetadataPath string `mapstructure:"metadata_path"`
	InferenceURL string `mapstructure:"inference_url"`
	Timeout      int    `mapstructure:"timeout"`      // milliseconds
	LoadBackoff  int    `mapstructure:"load_backoff"` // seconds before a failed load may be retried
}

// WorkerConfig holds the core settings applicable to every task worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// NotificationConfig holds settings for the notification gateway backends.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
	Timeout int `mapstructure:"timeout"` // milliseconds per delivery attempt
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
