package config

import (
	"fmt"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Version string        `yaml:"version" json:"version"`
	Loading LoadingConfig `yaml:"loading" json:"loading"`
	Tail    TailConfig    `yaml:"tail" json:"tail"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Viewer  ViewerConfig  `yaml:"viewer" json:"viewer"`
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`
}

// LoadingConfig configures progressive file loading
type LoadingConfig struct {
	ChunkSize     int `yaml:"chunk_size" json:"chunk_size"`           // lines appended per version bump
	MaxLineLength int `yaml:"max_line_length" json:"max_line_length"` // longer lines are rejected
	SampleLines   int `yaml:"sample_lines" json:"sample_lines"`       // lines fed to format detection
}

// TailConfig configures file following
type TailConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"` // fallback poll period
	UseFsnotify  bool          `yaml:"use_fsnotify" json:"use_fsnotify"`   // wake early on filesystem events
}

// OutputConfig configures output formatting and display
type OutputConfig struct {
	DefaultFormat   string `yaml:"default_format" json:"default_format"`     // json|text
	ColorMode       string `yaml:"color_mode" json:"color_mode"`             // auto|always|never
	Verbose         bool   `yaml:"verbose" json:"verbose"`                   // default verbosity
	TimestampFormat string `yaml:"timestamp_format" json:"timestamp_format"` // time format string
	ShowEmojis      bool   `yaml:"show_emojis" json:"show_emojis"`           // emoji markers in text output
}

// ViewerConfig configures the interactive viewer
type ViewerConfig struct {
	PageSize   int  `yaml:"page_size" json:"page_size"`     // visible window height
	ShowScores bool `yaml:"show_scores" json:"show_scores"` // anomaly score column
	WrapLines  bool `yaml:"wrap_lines" json:"wrap_lines"`
}

// ScoringConfig configures the anomaly scoring pass
type ScoringConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	TemporalWindow time.Duration `yaml:"temporal_window" json:"temporal_window"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Loading: LoadingConfig{
			ChunkSize:     10000,
			MaxLineLength: 1024 * 1024, // 1MB
			SampleLines:   10,
		},
		Tail: TailConfig{
			PollInterval: 500 * time.Millisecond,
			UseFsnotify:  true,
		},
		Output: OutputConfig{
			DefaultFormat:   "text",
			ColorMode:       "auto",
			Verbose:         false,
			TimestampFormat: "2006-01-02 15:04:05",
			ShowEmojis:      true,
		},
		Viewer: ViewerConfig{
			PageSize:   40,
			ShowScores: true,
			WrapLines:  false,
		},
		Scoring: ScoringConfig{
			Enabled:        true,
			TemporalWindow: 30 * time.Second,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateLoadingConfig(); err != nil {
		return err
	}
	if err := c.validateTailConfig(); err != nil {
		return err
	}
	if err := c.validateOutputConfig(); err != nil {
		return err
	}
	return c.validateViewerConfig()
}

func (c *Config) validateLoadingConfig() error {
	if c.Loading.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be greater than 0")
	}
	if c.Loading.MaxLineLength < 1 {
		return fmt.Errorf("max_line_length must be greater than 0")
	}
	if c.Loading.SampleLines < 1 {
		return fmt.Errorf("sample_lines must be greater than 0")
	}
	return nil
}

func (c *Config) validateTailConfig() error {
	if c.Tail.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateOutputConfig() error {
	if c.Output.DefaultFormat != "" {
		validFormats := map[string]bool{
			"json": true,
			"text": true,
		}
		if !validFormats[c.Output.DefaultFormat] {
			return fmt.Errorf("invalid output format: %s (must be one of: json, text)", c.Output.DefaultFormat)
		}
	}
	if c.Output.ColorMode != "" {
		validColorModes := map[string]bool{
			"auto":   true,
			"always": true,
			"never":  true,
		}
		if !validColorModes[c.Output.ColorMode] {
			return fmt.Errorf("invalid color mode: %s (must be one of: auto, always, never)", c.Output.ColorMode)
		}
	}
	return nil
}

func (c *Config) validateViewerConfig() error {
	if c.Viewer.PageSize < 1 {
		return fmt.Errorf("page_size must be greater than 0")
	}
	return nil
}
