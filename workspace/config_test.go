package workspace_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lh-manager/workbench/core/config"
	"github.com/lh-manager/workbench/workspace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := workspace.DefaultConfig()

	if cfg.Backend.BaseURL != "http://localhost:5001" {
		t.Errorf("got BaseURL %q", cfg.Backend.BaseURL)
	}
	if cfg.Refresh.StatusInterval.Std() != 5*time.Second {
		t.Errorf("got StatusInterval %s, want 5s", cfg.Refresh.StatusInterval)
	}
	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want slog", cfg.Observer)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := workspace.DefaultConfig()

	source := &workspace.Config{
		Observer: "noop",
		Refresh:  workspace.RefreshConfig{MaxBackoff: config.Duration(time.Second)},
	}
	source.Backend.BaseURL = "http://lh.local:5001"

	cfg.Merge(source)

	if cfg.Observer != "noop" {
		t.Errorf("got Observer %q, want noop", cfg.Observer)
	}
	if cfg.Backend.BaseURL != "http://lh.local:5001" {
		t.Errorf("got BaseURL %q", cfg.Backend.BaseURL)
	}
	if cfg.Refresh.MaxBackoff.Std() != time.Second {
		t.Errorf("got MaxBackoff %s, want 1s", cfg.Refresh.MaxBackoff)
	}
	if cfg.Refresh.SamplesInterval.Std() != 2*time.Second {
		t.Errorf("got SamplesInterval %s, want preserved default", cfg.Refresh.SamplesInterval)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"backend": {"base_url": "http://10.0.0.2:5001", "timeout": "3s"},
		"bus": {"channel_buffer_size": 8},
		"refresh": {"samples_interval": "500ms", "status_interval": 1},
		"editor": {"submit_timeout": "1m"},
		"observer": "noop"
	}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := workspace.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Backend.BaseURL != "http://10.0.0.2:5001" || cfg.Backend.Timeout.Std() != 3*time.Second {
		t.Errorf("got backend %+v", cfg.Backend)
	}
	if cfg.Bus.ChannelBufferSize != 8 {
		t.Errorf("got ChannelBufferSize %d, want 8", cfg.Bus.ChannelBufferSize)
	}
	if cfg.Refresh.SamplesInterval.Std() != 500*time.Millisecond {
		t.Errorf("got SamplesInterval %s, want 500ms", cfg.Refresh.SamplesInterval)
	}
	if cfg.Refresh.StatusInterval.Std() != time.Second {
		t.Errorf("got StatusInterval %s, want 1s", cfg.Refresh.StatusInterval)
	}
	if cfg.Refresh.MethodsInterval.Std() != 5*time.Minute {
		t.Errorf("got MethodsInterval %s, want preserved default", cfg.Refresh.MethodsInterval)
	}
	if cfg.Editor.SubmitTimeout.Std() != time.Minute {
		t.Errorf("got SubmitTimeout %s, want 1m", cfg.Editor.SubmitTimeout)
	}
	if cfg.Bus.Logger == nil {
		t.Error("bus logger lost in merge")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := workspace.LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := workspace.LoadConfig(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
