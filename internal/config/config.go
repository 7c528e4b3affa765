package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	DerivedDir   string `toml:"derived_dir"`
	LogDir       string `toml:"log_dir"`
	GeocodeCache string `toml:"geocode_cache"`
}

// Discovery contains file discovery configuration.
type Discovery struct {
	Recursive bool     `toml:"recursive"`
	Types     []string `toml:"types"`
}

// Conversion contains configuration for the HEIC and video frame producers.
type Conversion struct {
	HEICConverter        string `toml:"heic_converter"`
	FFmpeg               string `toml:"ffmpeg"`
	FrameIntervalSeconds int    `toml:"frame_interval_seconds"`
	MaxFrames            int    `toml:"max_frames"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// Prompt contains the description prompt configuration captured into each
// workspace at creation time.
type Prompt struct {
	Style string `toml:"style"`
	Text  string `toml:"text"`
}

// Workflow contains engine scheduling and retry configuration.
type Workflow struct {
	Workers                int `toml:"workers"`
	RetryAttempts          int `toml:"retry_attempts"`
	RetryBaseDelaySeconds  int `toml:"retry_base_delay_seconds"`
	RetryMaxDelaySeconds   int `toml:"retry_max_delay_seconds"`
	DescribeTimeoutSeconds int `toml:"describe_timeout_seconds"`
}

// Ollama contains configuration for a local Ollama model server.
type Ollama struct {
	Enabled bool           `toml:"enabled"`
	BaseURL string         `toml:"base_url"`
	Port    int            `toml:"port"`
	Model   string         `toml:"model"`
	Options map[string]any `toml:"options"`
}

// OpenAI contains configuration for an OpenAI-compatible chat completions API.
type OpenAI struct {
	Enabled        bool           `toml:"enabled"`
	APIKey         string         `toml:"api_key"`
	BaseURL        string         `toml:"base_url"`
	Model          string         `toml:"model"`
	TimeoutSeconds int            `toml:"timeout_seconds"`
	Options        map[string]any `toml:"options"`
}

// Anthropic contains configuration for the Anthropic messages API.
type Anthropic struct {
	Enabled        bool           `toml:"enabled"`
	APIKey         string         `toml:"api_key"`
	BaseURL        string         `toml:"base_url"`
	Model          string         `toml:"model"`
	Version        string         `toml:"version"`
	TimeoutSeconds int            `toml:"timeout_seconds"`
	Options        map[string]any `toml:"options"`
}

// Providers groups the configured description backends.
type Providers struct {
	Ollama    Ollama    `toml:"ollama"`
	OpenAI    OpenAI    `toml:"openai"`
	Anthropic Anthropic `toml:"anthropic"`
}

// Geocode contains reverse-geocoding enrichment configuration.
type Geocode struct {
	Enabled    bool    `toml:"enabled"`
	BaseURL    string  `toml:"base_url"`
	UserAgent  string  `toml:"user_agent"`
	GridMeters float64 `toml:"grid_meters"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lumen.
//
// Configuration sections by subsystem:
//   - Paths: workspace, derived-file, log, and geocode cache locations
//   - Discovery: recursion and media type filters
//   - Conversion: HEIC converter and ffmpeg frame extraction settings
//   - Prompt: description prompt style captured per workspace
//   - Workflow: worker pool sizing, retry budget, and call timeouts
//   - Providers: per-backend connection settings and free-form options
//   - Geocode: Nominatim endpoint and coordinate grid size
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Discovery  Discovery  `toml:"discovery"`
	Conversion Conversion `toml:"conversion"`
	Prompt     Prompt     `toml:"prompt"`
	Workflow   Workflow   `toml:"workflow"`
	Providers  Providers  `toml:"providers"`
	Geocode    Geocode    `toml:"geocode"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lumen/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path; the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lumen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for a run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.DerivedDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if path := strings.TrimSpace(c.Paths.GeocodeCache); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create geocode cache directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
