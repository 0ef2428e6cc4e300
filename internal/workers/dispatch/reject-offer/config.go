// internal/workers/dispatch/reject-offer/config.go
package rejectoffer

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
