package backend

import (
	"time"

	"github.com/lh-manager/workbench/core/config"
)

// Config defines how the workbench reaches the execution service.
type Config struct {
	BaseURL string          `json:"base_url,omitempty"`
	Timeout config.Duration `json:"timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5001",
		Timeout: config.Duration(10 * time.Second),
	}
}

func (c *Config) Merge(source *Config) {
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}

	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}
