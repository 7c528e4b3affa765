package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"lumen/internal/config"
	"lumen/internal/logging"
	"lumen/internal/provider"
	"lumen/internal/provider/anthropic"
	"lumen/internal/provider/ollama"
	"lumen/internal/provider/openai"
)

// documentFileName is the workspace document inside the workspace directory.
const documentFileName = "lumen.json"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// documentPath resolves the workspace document location. An explicit flag
// value wins; otherwise the configured workspace directory is used.
func (c *commandContext) documentPath(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return config.ExpandPath(flagValue)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Paths.WorkspaceDir, documentFileName), nil
}

// buildRegistry constructs the enabled providers in a stable order along
// with their per-request options.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*provider.Registry, map[string]provider.Options, error) {
	var providers []provider.Provider
	options := make(map[string]provider.Options)

	if cfg.Providers.Ollama.Enabled {
		providers = append(providers, ollama.New(ollama.Config{
			BaseURL: cfg.Providers.Ollama.BaseURL,
			Port:    cfg.Providers.Ollama.Port,
			Model:   cfg.Providers.Ollama.Model,
		}, logger))
		options["ollama"] = provider.Options(cfg.Providers.Ollama.Options)
	}
	if cfg.Providers.OpenAI.Enabled {
		providers = append(providers, openai.New(openai.Config{
			APIKey:         cfg.Providers.OpenAI.APIKey,
			BaseURL:        cfg.Providers.OpenAI.BaseURL,
			Model:          cfg.Providers.OpenAI.Model,
			TimeoutSeconds: cfg.Providers.OpenAI.TimeoutSeconds,
		}))
		options["openai"] = provider.Options(cfg.Providers.OpenAI.Options)
	}
	if cfg.Providers.Anthropic.Enabled {
		providers = append(providers, anthropic.New(anthropic.Config{
			APIKey:         cfg.Providers.Anthropic.APIKey,
			BaseURL:        cfg.Providers.Anthropic.BaseURL,
			Model:          cfg.Providers.Anthropic.Model,
			Version:        cfg.Providers.Anthropic.Version,
			TimeoutSeconds: cfg.Providers.Anthropic.TimeoutSeconds,
		}))
		options["anthropic"] = provider.Options(cfg.Providers.Anthropic.Options)
	}

	registry, err := provider.NewRegistry(providers...)
	if err != nil {
		return nil, nil, err
	}
	return registry, options, nil
}

// filterProviders narrows a registry to the named providers, keeping
// registry order. An empty filter returns the registry unchanged.
func filterProviders(registry *provider.Registry, names []string) (*provider.Registry, error) {
	if len(names) == 0 {
		return registry, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	var selected []provider.Provider
	for _, prov := range registry.Providers() {
		if wanted[prov.Name()] {
			selected = append(selected, prov)
		}
	}
	return provider.NewRegistry(selected...)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
