// Package config loads and validates pipeline configuration from JSON or
// YAML files, with environment variable overrides for credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectDirName is the dot-directory holding run state next to the target
// repository.
const ProjectDirName = ".coursegraph"

// LLMConfig selects and tunes the proposal model.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// ExpandConfig tunes the expansion controller.
type ExpandConfig struct {
	Rounds             int `json:"rounds" yaml:"rounds"`
	FrontierSize       int `json:"frontier_size,omitempty" yaml:"frontier_size,omitempty"`
	SummaryTokenBudget int `json:"summary_token_budget,omitempty" yaml:"summary_token_budget,omitempty"`
	MaxRetries         int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// CourseConfig tunes the course builder.
type CourseConfig struct {
	LessonSize      int  `json:"lesson_size,omitempty" yaml:"lesson_size,omitempty"`
	CourseSize      int  `json:"course_size,omitempty" yaml:"course_size,omitempty"`
	GenerateContent bool `json:"generate_content" yaml:"generate_content"`
}

// Config is the full pipeline configuration.
type Config struct {
	LLM    LLMConfig    `json:"llm" yaml:"llm"`
	Expand ExpandConfig `json:"expand" yaml:"expand"`
	Course CourseConfig `json:"course" yaml:"course"`

	// GraphPath and CoursesPath are where artifacts land, relative to the
	// project directory unless absolute.
	GraphPath   string `json:"graph_path,omitempty" yaml:"graph_path,omitempty"`
	CoursesPath string `json:"courses_path,omitempty" yaml:"courses_path,omitempty"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// PrometheusURL enables the stats command's metrics aggregation.
	PrometheusURL string `json:"prometheus_url,omitempty" yaml:"prometheus_url,omitempty"`

	// MetricsAddr, when set (e.g. ":9090"), serves a /metrics endpoint for
	// the duration of pipeline commands.
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Temperature: 0.3,
		},
		Expand: ExpandConfig{
			Rounds:             3,
			FrontierSize:       12,
			SummaryTokenBudget: 2000,
			MaxRetries:         3,
		},
		Course: CourseConfig{
			LessonSize:      3,
			CourseSize:      6,
			GenerateContent: true,
		},
		GraphPath:   "graph.json",
		CoursesPath: "courses.json",
		DBPath:      "coursegraph.db",
	}
}

// Load reads the config file at path, which may be JSON or YAML depending
// on extension, applies defaults for unset fields, resolves API keys from
// the environment, and validates the result. An empty path returns the
// validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse JSON config %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.resolveAPIKey()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = d.LLM.Temperature
	}
	if c.Expand.Rounds <= 0 {
		c.Expand.Rounds = d.Expand.Rounds
	}
	if c.GraphPath == "" {
		c.GraphPath = d.GraphPath
	}
	if c.CoursesPath == "" {
		c.CoursesPath = d.CoursesPath
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
}

// resolveAPIKey fills LLM.APIKey from the secrets store or environment when
// the config file left it empty. Per-provider variable names follow the
// providers' own conventions.
func (c *Config) resolveAPIKey() {
	if c.LLM.APIKey != "" {
		return
	}
	var names []string
	switch c.LLM.Provider {
	case "anthropic":
		names = []string{"ANTHROPIC_API_KEY"}
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	case "google":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range names {
		if v, err := GetSecret(name); err == nil {
			c.LLM.APIKey = v
			return
		}
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai", "google":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("provider %s requires an API key (config, secrets file, or environment)", c.LLM.Provider)
		}
	case "ollama":
		// Local server, no key.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Expand.Rounds <= 0 {
		return fmt.Errorf("expand.rounds must be positive, got %d", c.Expand.Rounds)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature %v out of range [0,1]", c.LLM.Temperature)
	}
	return nil
}

// ResolvePath anchors a configured artifact path under the project
// directory unless it is already absolute.
func ResolvePath(projectDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, ProjectDirName, path)
}
