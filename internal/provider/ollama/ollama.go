package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	ollamaapi "github.com/agent-api/ollama"
	"github.com/go-logr/logr"

	"lumen/internal/logging"
	"lumen/internal/provider"
)

const (
	defaultBaseURL     = "http://localhost"
	defaultPort        = 11434
	defaultHTTPTimeout = 10 * time.Second
)

// Config captures the runtime settings for a local Ollama daemon.
type Config struct {
	BaseURL string
	Port    int
	Model   string
}

// Client implements provider.Provider on top of the agent-api Ollama
// bindings. Vision models run locally, so availability means the daemon
// answers on its API port.
type Client struct {
	cfg         Config
	logger      *slog.Logger
	agentLogger *logr.Logger
	httpClient  *http.Client

	agentProvider *ollamaapi.Provider
}

// New constructs an Ollama provider. The agent-api provider is built eagerly
// so model selection errors surface at startup rather than mid-run.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	agentLogger := logr.FromSlogHandler(logger.Handler())
	agentProvider := ollamaapi.NewProvider(&ollamaapi.ProviderOpts{
		Logger:  &agentLogger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	return &Client{
		cfg:           cfg,
		logger:        logger,
		agentLogger:   &agentLogger,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		agentProvider: agentProvider,
	}
}

// Name identifies this backend in records and logs.
func (c *Client) Name() string { return "ollama" }

// Available checks that the daemon answers on its tags endpoint.
func (c *Client) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("/api/tags"), nil)
	if err != nil {
		return fmt.Errorf("ollama: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: daemon not reachable at %s: %w", c.apiURL(""), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: daemon returned http %d", resp.StatusCode)
	}
	return nil
}

// ListModels returns the model tags the daemon has pulled locally.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("ollama models: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama models: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama models: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama models: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ollama models: decode response: %w", err)
	}
	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// Describe runs one vision completion through a fresh agent. Predictable
// failures (daemon down, timeout, empty output) come back inside the result.
func (c *Client) Describe(ctx context.Context, req provider.DescribeRequest) (provider.DescribeResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	result := provider.DescribeResult{Model: model}
	if model == "" {
		return result, errors.New("ollama describe: model not configured")
	}
	if req.ImagePath == "" {
		return result, errors.New("ollama describe: no image supplied")
	}

	if err := c.agentProvider.UseModel(ctx, &core.Model{ID: model}); err != nil {
		result.Failure = &provider.Failure{
			Kind:    provider.FailureNotFound,
			Message: fmt.Sprintf("select model %q: %v", model, err),
		}
		return result, nil
	}

	visionAgent, err := agent.NewAgent(
		bootstrap.WithProvider(c.agentProvider),
		bootstrap.WithLogger(c.agentLogger),
		bootstrap.WithSystemPrompt("You are a visual analysis assistant that writes precise descriptions of images."),
	)
	if err != nil {
		return result, fmt.Errorf("ollama describe: new agent: %w", err)
	}

	response, err := visionAgent.Run(ctx,
		agent.WithInput(req.Prompt),
		agent.WithImagePath(req.ImagePath),
	)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return result, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			result.Failure = &provider.Failure{Kind: provider.FailureTimeout, Message: err.Error()}
			return result, nil
		}
		result.Failure = provider.FailureFromTransport(err)
		return result, nil
	}

	if len(response.Messages) == 0 {
		result.Failure = &provider.Failure{
			Kind:    provider.FailureServer,
			Message: "no response messages received from model",
		}
		return result, nil
	}
	content := strings.TrimSpace(response.Messages[len(response.Messages)-1].Content)
	if content == "" {
		result.Failure = provider.ClassifyEmptyContent(result.FinishReason)
		return result, nil
	}
	result.Text = content
	return result, nil
}

func (c *Client) apiURL(path string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if u, err := url.Parse(base); err == nil && u.Port() != "" {
		return base + path
	}
	if c.cfg.Port > 0 {
		return fmt.Sprintf("%s:%d%s", base, c.cfg.Port, path)
	}
	return base + path
}
