package openai

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
)

// Config captures the runtime settings required to talk to an
// OpenAI-compatible chat completions endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client implements provider.Provider against the chat completions API. It
// performs exactly one attempt per Describe call; retries are engine policy.
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

// New constructs an OpenAI-compatible provider from the supplied configuration.
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
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	return client
}

// Name identifies this backend in records and logs.
func (c *Client) Name() string { return "openai" }

// Available verifies the client is configured without touching the network.
func (c *Client) Available(context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("openai: api key missing")
	}
	if c.cfg.Model == "" {
		return errors.New("openai: model not configured")
	}
	return nil
}

// ListModels queries the models endpoint adjacent to the configured
// completions URL. An empty list is valid.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	endpoint := modelsEndpoint(c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("openai models: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai models: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai models: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai models: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai models: decode response: %w", err)
	}
	models := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

// Describe sends one vision chat completion request. Predictable failures
// come back inside the result; only malformed local state is an error.
func (c *Client) Describe(ctx context.Context, req provider.DescribeRequest) (provider.DescribeResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	result := provider.DescribeResult{Model: model}

	imageData, mimeType, err := resolveImage(req)
	if err != nil {
		return result, err
	}

	payload := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: req.Prompt},
					{
						Type: "image_url",
						ImageURL: &imageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData)),
						},
					},
				},
			},
		},
		MaxTokens: defaultMaxTokens,
	}
	if v, ok := req.Options.Float64("temperature"); ok {
		payload.Temperature = &v
	}
	if v, ok := req.Options.Int("max_tokens"); ok && v > 0 {
		payload.MaxTokens = v
	}

	completion, failure, err := c.sendOnce(ctx, payload)
	if err != nil {
		return result, err
	}
	if failure != nil {
		result.Failure = failure
		return result, nil
	}

	content, finishReason := extractContent(completion)
	result.FinishReason = finishReason
	result.TokensIn = completion.Usage.PromptTokens
	result.TokensOut = completion.Usage.CompletionTokens
	if content == "" {
		result.Failure = provider.ClassifyEmptyContent(finishReason)
		return result, nil
	}
	result.Text = content
	return result, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Some compatible servers return the streaming schema even when
		// stream=false, so tolerate it as a fallback.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) sendOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, *provider.Failure, error) {
	var completion chatCompletionResponse

	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("openai request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("openai request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return completion, nil, ctx.Err()
		}
		return completion, provider.FailureFromTransport(err), nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, provider.FailureFromTransport(err), nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter := provider.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, provider.FailureFromStatus(resp.StatusCode, string(body), retryAfter), nil
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, &provider.Failure{
			Kind:    provider.FailureServer,
			Message: fmt.Sprintf("decode response: %v", err),
		}, nil
	}
	if completion.Error != nil {
		return completion, &provider.Failure{
			Kind:    provider.FailureBadRequest,
			Message: strings.TrimSpace(completion.Error.Message),
		}, nil
	}
	return completion, nil, nil
}

func extractContent(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, finishReason
		}
		if content := strings.TrimSpace(choice.Delta.Content); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func resolveImage(req provider.DescribeRequest) ([]byte, string, error) {
	data := req.ImageData
	if len(data) == 0 {
		if req.ImagePath == "" {
			return nil, "", errors.New("openai describe: no image supplied")
		}
		loaded, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return nil, "", fmt.Errorf("openai describe: read image: %w", err)
		}
		data = loaded
	}
	return data, mimeTypeFor(req.ImagePath), nil
}

func mimeTypeFor(path string) string {
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
	if idx := strings.Index(baseURL, "/chat/completions"); idx > 0 {
		return baseURL[:idx] + "/models"
	}
	return strings.TrimRight(baseURL, "/") + "/models"
}
