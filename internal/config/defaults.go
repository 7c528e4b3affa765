package config

const (
	defaultWorkspaceDir         = "~/.local/share/lumen/workspaces"
	defaultDerivedDir           = "~/.local/share/lumen/derived"
	defaultLogDir               = "~/.local/share/lumen/logs"
	defaultGeocodeCache         = "~/.local/share/lumen/geocode.db"
	defaultHEICConverter        = "heif-convert"
	defaultFFmpeg               = "ffmpeg"
	defaultFrameInterval        = 15
	defaultConversionTimeout    = 300
	defaultPromptStyle          = "detailed"
	defaultWorkers              = 2
	defaultRetryAttempts        = 3
	defaultRetryBaseDelay       = 1
	defaultRetryMaxDelay        = 30
	defaultDescribeTimeout      = 120
	defaultOllamaBaseURL        = "http://localhost"
	defaultOllamaPort           = 11434
	defaultOllamaModel          = "llama3.2-vision:11b"
	defaultOpenAIBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultOpenAITimeoutSeconds = 120
	defaultAnthropicBaseURL     = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel       = "claude-3-5-haiku-latest"
	defaultAnthropicVersion     = "2023-06-01"
	defaultGeocodeBaseURL       = "https://nominatim.openstreetmap.org"
	defaultGeocodeUserAgent     = "lumen/0.1"
	defaultGeocodeGridMeters    = 100.0
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			DerivedDir:   defaultDerivedDir,
			LogDir:       defaultLogDir,
			GeocodeCache: defaultGeocodeCache,
		},
		Discovery: Discovery{
			Recursive: true,
			Types:     []string{"image", "heic", "video"},
		},
		Conversion: Conversion{
			HEICConverter:        defaultHEICConverter,
			FFmpeg:               defaultFFmpeg,
			FrameIntervalSeconds: defaultFrameInterval,
			TimeoutSeconds:       defaultConversionTimeout,
		},
		Prompt: Prompt{
			Style: defaultPromptStyle,
		},
		Workflow: Workflow{
			Workers:                defaultWorkers,
			RetryAttempts:          defaultRetryAttempts,
			RetryBaseDelaySeconds:  defaultRetryBaseDelay,
			RetryMaxDelaySeconds:   defaultRetryMaxDelay,
			DescribeTimeoutSeconds: defaultDescribeTimeout,
		},
		Providers: Providers{
			Ollama: Ollama{
				Enabled: true,
				BaseURL: defaultOllamaBaseURL,
				Port:    defaultOllamaPort,
				Model:   defaultOllamaModel,
			},
			OpenAI: OpenAI{
				BaseURL:        defaultOpenAIBaseURL,
				Model:          defaultOpenAIModel,
				TimeoutSeconds: defaultOpenAITimeoutSeconds,
			},
			Anthropic: Anthropic{
				BaseURL:        defaultAnthropicBaseURL,
				Model:          defaultAnthropicModel,
				Version:        defaultAnthropicVersion,
				TimeoutSeconds: defaultOpenAITimeoutSeconds,
			},
		},
		Geocode: Geocode{
			BaseURL:    defaultGeocodeBaseURL,
			UserAgent:  defaultGeocodeUserAgent,
			GridMeters: defaultGeocodeGridMeters,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
