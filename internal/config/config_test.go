package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Loading.ChunkSize != 10000 {
		t.Errorf("default chunk_size = %d, want 10000", cfg.Loading.ChunkSize)
	}
	if cfg.Tail.PollInterval != 500*time.Millisecond {
		t.Errorf("default poll_interval = %v, want 500ms", cfg.Tail.PollInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Loading.ChunkSize = 0 }},
		{"negative poll interval", func(c *Config) { c.Tail.PollInterval = -time.Second }},
		{"unknown output format", func(c *Config) { c.Output.DefaultFormat = "xml" }},
		{"unknown color mode", func(c *Config) { c.Output.ColorMode = "sometimes" }},
		{"zero page size", func(c *Config) { c.Viewer.PageSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigFromCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
loading:
  chunk_size: 500
tail:
  poll_interval: 2s
output:
  default_format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Loading.ChunkSize != 500 {
		t.Errorf("chunk_size = %d, want 500", cfg.Loading.ChunkSize)
	}
	if cfg.Tail.PollInterval != 2*time.Second {
		t.Errorf("poll_interval = %v, want 2s", cfg.Tail.PollInterval)
	}
	if cfg.Output.DefaultFormat != "json" {
		t.Errorf("default_format = %q, want json", cfg.Output.DefaultFormat)
	}
	// Unset keys keep their defaults.
	if cfg.Loading.MaxLineLength != 1024*1024 {
		t.Errorf("max_line_length = %d, want default", cfg.Loading.MaxLineLength)
	}
}

func TestLoadConfigRejectsNonYAMLPath(t *testing.T) {
	if _, err := NewLoader().LoadConfig("/tmp/config.txt"); err == nil {
		t.Fatal("expected error for non-yaml config path")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOGWEAVE_LOADING_CHUNK_SIZE", "123")
	t.Setenv("LOGWEAVE_TAIL_POLL_INTERVAL", "250ms")
	t.Setenv("LOGWEAVE_OUTPUT_VERBOSE", "true")

	cfg, err := NewLoader().LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Loading.ChunkSize != 123 {
		t.Errorf("chunk_size = %d, want 123", cfg.Loading.ChunkSize)
	}
	if cfg.Tail.PollInterval != 250*time.Millisecond {
		t.Errorf("poll_interval = %v, want 250ms", cfg.Tail.PollInterval)
	}
	if !cfg.Output.Verbose {
		t.Error("verbose override not applied")
	}
}

func TestEnvOverrideInvalidValue(t *testing.T) {
	t.Setenv("LOGWEAVE_LOADING_CHUNK_SIZE", "not-a-number")
	if _, err := NewLoader().LoadConfig(""); err == nil {
		t.Fatal("expected error for invalid env value")
	}
}
