package editor

import (
	"time"

	"github.com/lh-manager/workbench/core/config"
)

type Config struct {
	// SubmitTimeout bounds each backend call started by the editor. Calls
	// are detached from the caller's context and only this timeout ends them.
	SubmitTimeout config.Duration `json:"submit_timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{SubmitTimeout: config.Duration(30 * time.Second)}
}

func (c *Config) Merge(source *Config) {
	if source.SubmitTimeout > 0 {
		c.SubmitTimeout = source.SubmitTimeout
	}
}
