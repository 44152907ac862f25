package workspace

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/bus"
	"github.com/lh-manager/workbench/core/config"
	"github.com/lh-manager/workbench/editor"
	"github.com/lh-manager/workbench/observability"
)

// RefreshConfig sets the polling cadence for backend state.
type RefreshConfig struct {
	SamplesInterval config.Duration `json:"samples_interval,omitempty"`
	StatusInterval  config.Duration `json:"status_interval,omitempty"`
	MethodsInterval config.Duration `json:"methods_interval,omitempty"`
	MaxBackoff      config.Duration `json:"max_backoff,omitempty"`
}

func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		SamplesInterval: config.Duration(2 * time.Second),
		StatusInterval:  config.Duration(5 * time.Second),
		MethodsInterval: config.Duration(5 * time.Minute),
		MaxBackoff:      config.Duration(time.Minute),
	}
}

func (c *RefreshConfig) Merge(source *RefreshConfig) {
	if source.SamplesInterval > 0 {
		c.SamplesInterval = source.SamplesInterval
	}
	if source.StatusInterval > 0 {
		c.StatusInterval = source.StatusInterval
	}
	if source.MethodsInterval > 0 {
		c.MethodsInterval = source.MethodsInterval
	}
	if source.MaxBackoff > 0 {
		c.MaxBackoff = source.MaxBackoff
	}
}

// Config holds initialization parameters for every workbench subsystem.
// Each section is handed to that subsystem's constructor.
type Config struct {
	Backend  backend.Config `json:"backend"`
	Bus      bus.Config     `json:"bus"`
	Refresh  RefreshConfig  `json:"refresh"`
	Editor   editor.Config  `json:"editor"`
	Observer string         `json:"observer,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Backend:  backend.DefaultConfig(),
		Bus:      bus.DefaultConfig(),
		Refresh:  DefaultRefreshConfig(),
		Editor:   editor.DefaultConfig(),
		Observer: observability.ObserverSlog,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge.
func (c *Config) Merge(source *Config) {
	c.Backend.Merge(&source.Backend)
	c.Bus.Merge(&source.Bus)
	c.Refresh.Merge(&source.Refresh)
	c.Editor.Merge(&source.Editor)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file and merges it over the defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
