// internal/workers/dispatch/dispatch-job/config.go
package dispatchjob

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
