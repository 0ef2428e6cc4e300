// internal/common/config/loader_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func minimalValidConfig() *Config {
	cfg := &Config{}
	cfg.Camunda.BrokerAddress = "localhost:26500"
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Postgres.Database = "dispatch"
	cfg.Database.Postgres.User = "dispatch"
	cfg.Database.Redis.Address = "localhost:6379"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := minimalValidConfig()
	applyDefaults(cfg)

	assert.Equal(t, 8080, cfg.App.MetricsPort)
	assert.Equal(t, 3, cfg.Dispatch.TargetPoolSize)
	assert.Equal(t, 120, cfg.Dispatch.OfferTTL)
	assert.Equal(t, "@every 30s", cfg.Dispatch.SweepSchedule)
	assert.Equal(t, 0.4, cfg.Dispatch.Scoring.RatingWeight)
	assert.Equal(t, 0.4, cfg.Dispatch.Scoring.DistanceWeight)
	assert.Equal(t, 0.2, cfg.Dispatch.Scoring.NoiseWeight)
	assert.Equal(t, 15000, cfg.Model.Timeout)
	assert.Equal(t, 60, cfg.Model.LoadBackoff)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyDefaults_KeepsExplicitWeights(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Dispatch.Scoring.RatingWeight = 0.6
	cfg.Dispatch.Scoring.DistanceWeight = 0.4
	applyDefaults(cfg)

	assert.Equal(t, 0.6, cfg.Dispatch.Scoring.RatingWeight)
	// Weights already sum to one; no noise term is forced in.
	assert.Equal(t, 0.0, cfg.Dispatch.Scoring.NoiseWeight)
}

func TestValidateConfig(t *testing.T) {
	cfg := minimalValidConfig()
	applyDefaults(cfg)
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfig_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing broker address", func(c *Config) { c.Camunda.BrokerAddress = "" }},
		{"missing postgres host", func(c *Config) { c.Database.Postgres.Host = "" }},
		{"missing postgres database", func(c *Config) { c.Database.Postgres.Database = "" }},
		{"missing redis address", func(c *Config) { c.Database.Redis.Address = "" }},
		{"negative weight", func(c *Config) { c.Dispatch.Scoring.NoiseWeight = -0.1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			applyDefaults(cfg)
			tc.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "localhost", Port: 5432, Database: "dispatch",
		User: "app", Password: "secret", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=app password=secret dbname=dispatch sslmode=disable",
		cfg.GetDSN(),
	)
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := minimalValidConfig()
	cfg.Workers = map[string]WorkerConfig{
		"dispatch-job": {Enabled: true, MaxJobsActive: 10, Timeout: 15000},
	}

	found := GetWorkerConfig(cfg, "dispatch-job")
	assert.Equal(t, 10, found.MaxJobsActive)

	fallback := GetWorkerConfig(cfg, "unknown-task")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)
}
