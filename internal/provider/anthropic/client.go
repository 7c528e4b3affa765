package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lumen/internal/provider"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultMaxTokens   = 512
	defaultAPIVersion  = "2023-06-01"
)

// Config captures the runtime settings for the Anthropic messages API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Version        string
	TimeoutSeconds int
}

// Client implements provider.Provider against the messages API. One attempt
// per call; retry policy lives in the engine.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs an Anthropic provider from the supplied configuration.
func New(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			Version:        strings.TrimSpace(cfg.Version),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.anthropic.com/v1/messages"
	}
	if client.cfg.Version == "" {
		client.cfg.Version = defaultAPIVersion
	}
	return client
}

// Name identifies this backend in records and logs.
func (c *Client) Name() string { return "anthropic" }

// Available verifies the client is configured without touching the network.
func (c *Client) Available(context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("anthropic: api key missing")
	}
	if c.cfg.Model == "" {
		return errors.New("anthropic: model not configured")
	}
	return nil
}

// ListModels queries the models endpoint adjacent to the configured messages
// URL.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	endpoint := modelsEndpoint(c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("anthropic models: new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic models: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic models: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic models: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("anthropic models: decode response: %w", err)
	}
	models := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

// Describe sends one vision message request. Predictable failures come back
// inside the result; the error return is reserved for malformed local state.
func (c *Client) Describe(ctx context.Context, req provider.DescribeRequest) (provider.DescribeResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	result := provider.DescribeResult{Model: model}

	imageData, mediaType, err := resolveImage(req)
	if err != nil {
		return result, err
	}

	payload := messageRequest{
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Messages: []message{
			{
				Role: "user",
				Content: []contentBlock{
					{
						Type: "image",
						Source: &imageSource{
							Type:      "base64",
							MediaType: mediaType,
							Data:      base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{Type: "text", Text: req.Prompt},
				},
			},
		},
	}
	if v, ok := req.Options.Float64("temperature"); ok {
		payload.Temperature = &v
	}
	if v, ok := req.Options.Int("max_tokens"); ok && v > 0 {
		payload.MaxTokens = v
	}

	response, failure, err := c.sendOnce(ctx, payload)
	if err != nil {
		return result, err
	}
	if failure != nil {
		result.Failure = failure
		return result, nil
	}

	result.FinishReason = response.StopReason
	result.TokensIn = response.Usage.InputTokens
	result.TokensOut = response.Usage.OutputTokens
	text := extractText(response)
	if text == "" {
		result.Failure = provider.ClassifyEmptyContent(response.StopReason)
		return result, nil
	}
	result.Text = text
	return result, nil
}

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) sendOnce(ctx context.Context, payload messageRequest) (messageResponse, *provider.Failure, error) {
	var response messageResponse

	encoded, err := json.Marshal(payload)
	if err != nil {
		return response, nil, fmt.Errorf("anthropic request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return response, nil, fmt.Errorf("anthropic request: new request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return response, nil, ctx.Err()
		}
		return response, provider.FailureFromTransport(err), nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response, provider.FailureFromTransport(err), nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter := provider.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return response, provider.FailureFromStatus(resp.StatusCode, string(body), retryAfter), nil
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, &provider.Failure{
			Kind:    provider.FailureServer,
			Message: fmt.Sprintf("decode response: %v", err),
		}, nil
	}
	if response.Error != nil {
		return response, &provider.Failure{
			Kind:    provider.FailureBadRequest,
			Message: strings.TrimSpace(response.Error.Message),
		}, nil
	}
	return response, nil, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)
}

func extractText(response messageResponse) string {
	var builder strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" && block.Text != "" {
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(builder.String())
}

func resolveImage(req provider.DescribeRequest) ([]byte, string, error) {
	data := req.ImageData
	if len(data) == 0 {
		if req.ImagePath == "" {
			return nil, "", errors.New("anthropic describe: no image supplied")
		}
		loaded, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return nil, "", fmt.Errorf("anthropic describe: read image: %w", err)
		}
		data = loaded
	}
	return data, mediaTypeFor(req.ImagePath), nil
}

func mediaTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func modelsEndpoint(baseURL string) string {
	if idx := strings.Index(baseURL, "/messages"); idx > 0 {
		return baseURL[:idx] + "/models"
	}
	return strings.TrimRight(baseURL, "/") + "/models"
}
