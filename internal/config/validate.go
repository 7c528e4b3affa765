package config

import (
	"fmt"
	"strings"
)

var knownTypes = map[string]struct{}{
	"image": {},
	"heic":  {},
	"video": {},
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return err
	}
	if c.Paths.DerivedDir, err = expandPath(c.Paths.DerivedDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.GeocodeCache, err = expandPath(c.Paths.GeocodeCache); err != nil {
		return err
	}

	normalized := make([]string, 0, len(c.Discovery.Types))
	seen := make(map[string]struct{}, len(c.Discovery.Types))
	for _, value := range c.Discovery.Types {
		t := strings.ToLower(strings.TrimSpace(value))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}
	c.Discovery.Types = normalized

	c.Prompt.Style = strings.ToLower(strings.TrimSpace(c.Prompt.Style))
	if c.Prompt.Style == "" {
		c.Prompt.Style = defaultPromptStyle
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.RetryAttempts <= 0 {
		c.Workflow.RetryAttempts = defaultRetryAttempts
	}
	if c.Workflow.RetryBaseDelaySeconds <= 0 {
		c.Workflow.RetryBaseDelaySeconds = defaultRetryBaseDelay
	}
	if c.Workflow.RetryMaxDelaySeconds <= 0 {
		c.Workflow.RetryMaxDelaySeconds = defaultRetryMaxDelay
	}
	if c.Workflow.DescribeTimeoutSeconds <= 0 {
		c.Workflow.DescribeTimeoutSeconds = defaultDescribeTimeout
	}
	if c.Conversion.FrameIntervalSeconds <= 0 {
		c.Conversion.FrameIntervalSeconds = defaultFrameInterval
	}
	if c.Conversion.TimeoutSeconds <= 0 {
		c.Conversion.TimeoutSeconds = defaultConversionTimeout
	}
	if c.Geocode.GridMeters <= 0 {
		c.Geocode.GridMeters = defaultGeocodeGridMeters
	}
	return nil
}

// Validate checks the configuration for values that would make a run fail at
// an inconvenient moment rather than at startup.
func (c *Config) Validate() error {
	for _, value := range c.Discovery.Types {
		if _, ok := knownTypes[value]; !ok {
			return fmt.Errorf("discovery.types: unknown media type %q", value)
		}
	}
	if len(c.Discovery.Types) == 0 {
		return fmt.Errorf("discovery.types: at least one media type required")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}

	if !c.Providers.Ollama.Enabled && !c.Providers.OpenAI.Enabled && !c.Providers.Anthropic.Enabled {
		return fmt.Errorf("providers: at least one provider must be enabled")
	}
	if c.Providers.OpenAI.Enabled && strings.TrimSpace(c.Providers.OpenAI.APIKey) == "" {
		return fmt.Errorf("providers.openai: api_key required when enabled")
	}
	if c.Providers.Anthropic.Enabled && strings.TrimSpace(c.Providers.Anthropic.APIKey) == "" {
		return fmt.Errorf("providers.anthropic: api_key required when enabled")
	}
	if c.Geocode.Enabled && strings.TrimSpace(c.Geocode.UserAgent) == "" {
		return fmt.Errorf("geocode.user_agent required when geocoding is enabled")
	}
	return nil
}
