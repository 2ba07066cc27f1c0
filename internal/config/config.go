package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/pattern-tools-mcp/internal/detection"
	"github.com/ironsheep/pattern-tools-mcp/internal/export"
	"github.com/ironsheep/pattern-tools-mcp/internal/imaging"
	"github.com/ironsheep/pattern-tools-mcp/internal/pipeline"
)

// Environment variables that override file settings.
const (
	EnvLogLevel      = "PATTERN_MCP_LOG_LEVEL"
	EnvEpsilon       = "PATTERN_MCP_EPSILON"
	EnvLowThreshold  = "PATTERN_MCP_LOW_THRESHOLD"
	EnvHighThreshold = "PATTERN_MCP_HIGH_THRESHOLD"
)

// Config holds the server configuration
type Config struct {
	Pipeline PipelineConfig      `json:"pipeline"`
	Edges    imaging.EdgeOptions `json:"edges"`
	Export   ExportConfig        `json:"export"`
	Log      LogConfig           `json:"log"`
}

// PipelineConfig holds the vectorization defaults used when a tool call
// does not override them
type PipelineConfig struct {
	RectifyWidth     int     `json:"rectify_width"`
	RectifyHeight    int     `json:"rectify_height"`
	Epsilon          float64 `json:"epsilon"`
	SmoothWindow     int     `json:"smooth_window"`
	MinPolygonPoints int     `json:"min_polygon_points"`
}

// ExportConfig holds page decoration defaults
type ExportConfig struct {
	CustomerName string `json:"customer_name"`
	StrokeColor  string `json:"stroke_color"`
	Grid         bool   `json:"grid"`
	Labels       bool   `json:"labels"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `json:"level"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			RectifyWidth:     imaging.DefaultRectifiedWidth,
			RectifyHeight:    imaging.DefaultRectifiedHeight,
			Epsilon:          detection.DefaultEpsilon,
			MinPolygonPoints: pipeline.DefaultMinPolygonPoints,
		},
		Edges: imaging.DefaultEdgeOptions(),
		Export: ExportConfig{
			StrokeColor: export.DefaultStrokeColor,
			Grid:        true,
			Labels:      true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads the configuration from path, or from GetConfigPath when path
// is empty. A missing default file is not an error; a missing explicit file
// is. Environment overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = GetConfigPath()
	}

	config, err := LoadFromFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		config = Default()
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from PATTERN_MCP_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := getEnv(EnvLogLevel, ""); v != "" {
		c.Log.Level = strings.ToLower(v)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{EnvEpsilon, &c.Pipeline.Epsilon},
		{EnvLowThreshold, &c.Edges.LowThreshold},
		{EnvHighThreshold, &c.Edges.HighThreshold},
	}
	for _, f := range floats {
		v := getEnv(f.key, "")
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.key, v, err)
		}
		*f.dst = parsed
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Pipeline.RectifyWidth < 1 || c.Pipeline.RectifyHeight < 1 {
		return fmt.Errorf("pipeline.rectify_width and rectify_height must be positive")
	}

	if c.Pipeline.Epsilon < 0 {
		return fmt.Errorf("pipeline.epsilon must be >= 0")
	}

	if c.Pipeline.SmoothWindow < 0 {
		return fmt.Errorf("pipeline.smooth_window must be >= 0")
	}

	if c.Pipeline.MinPolygonPoints < 3 {
		return fmt.Errorf("pipeline.min_polygon_points must be at least 3")
	}

	if err := c.Edges.Validate(); err != nil {
		return fmt.Errorf("edges: %w", err)
	}

	if err := c.ExportOptions().Validate(); err != nil {
		return fmt.Errorf("export.stroke_color: %w", err)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error")
	}

	return nil
}

// PipelineOptions converts the configuration into pipeline defaults.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		RectifyWidth:     c.Pipeline.RectifyWidth,
		RectifyHeight:    c.Pipeline.RectifyHeight,
		Edges:            c.Edges,
		Epsilon:          c.Pipeline.Epsilon,
		SmoothWindow:     c.Pipeline.SmoothWindow,
		MinPolygonPoints: c.Pipeline.MinPolygonPoints,
	}
}

// ExportOptions converts the configuration into page decoration defaults.
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		CustomerName: c.Export.CustomerName,
		StrokeColor:  c.Export.StrokeColor,
		Grid:         c.Export.Grid,
		Labels:       c.Export.Labels,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "pattern-mcp", "config.json")
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}
