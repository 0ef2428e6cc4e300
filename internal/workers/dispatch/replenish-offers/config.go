// internal/workers/dispatch/replenish-offers/config.go
package replenishoffers

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
