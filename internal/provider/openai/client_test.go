package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lumen/internal/provider"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestDescribeSuccess(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{
			"choices": [{"message": {"content": "A dog on a beach."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 210, "completion_tokens": 12}
		}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	result, err := client.Describe(context.Background(), provider.DescribeRequest{
		ImagePath: writeTestImage(t),
		Prompt:    "Describe this image.",
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if result.Failure != nil {
		t.Fatalf("unexpected failure: %v", result.Failure)
	}
	if result.Text != "A dog on a beach." {
		t.Fatalf("text = %q", result.Text)
	}
	if result.FinishReason != "stop" {
		t.Fatalf("finish reason = %q", result.FinishReason)
	}
	if result.TokensIn != 210 || result.TokensOut != 12 {
		t.Fatalf("tokens = %d/%d", result.TokensIn, result.TokensOut)
	}
	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("request model = %q", captured.Model)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("unexpected message shape: %+v", captured.Messages)
	}
	image := captured.Messages[0].Content[1]
	if image.ImageURL == nil || !strings.HasPrefix(image.ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatalf("image part = %+v", image)
	}
}

func TestDescribeRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	result, err := client.Describe(context.Background(), provider.DescribeRequest{
		ImagePath: writeTestImage(t),
		Prompt:    "Describe this image.",
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if result.Failure == nil {
		t.Fatal("expected failure")
	}
	if result.Failure.Kind != provider.FailureRateLimited {
		t.Fatalf("failure kind = %q", result.Failure.Kind)
	}
	if result.Failure.RetryAfter != 7*time.Second {
		t.Fatalf("retry after = %v", result.Failure.RetryAfter)
	}
	if !result.Failure.Kind.Retryable() {
		t.Fatal("rate limited should be retryable")
	}
}

func TestDescribeTruncatedEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"choices": [{"message": {"content": ""}, "finish_reason": "length"}]}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	result, err := client.Describe(context.Background(), provider.DescribeRequest{
		ImagePath: writeTestImage(t),
		Prompt:    "Describe this image.",
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if result.Failure == nil || result.Failure.Kind != provider.FailureTruncated {
		t.Fatalf("expected truncated failure, got %+v", result.Failure)
	}
}

func TestDescribeEmptyContentWithStopIsLegal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"choices": [{"message": {"content": ""}, "finish_reason": "stop"}]}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	result, err := client.Describe(context.Background(), provider.DescribeRequest{
		ImagePath: writeTestImage(t),
		Prompt:    "Describe this image.",
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if result.Failure != nil {
		t.Fatalf("unexpected failure: %v", result.Failure)
	}
	if result.Text != "" {
		t.Fatalf("text = %q", result.Text)
	}
}

func TestDescribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"error": {"message": "model does not support images", "type": "invalid_request_error"}}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	result, err := client.Describe(context.Background(), provider.DescribeRequest{
		ImagePath: writeTestImage(t),
		Prompt:    "Describe this image.",
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if result.Failure == nil || result.Failure.Kind != provider.FailureBadRequest {
		t.Fatalf("expected bad request failure, got %+v", result.Failure)
	}
	if !strings.Contains(result.Failure.Message, "does not support images") {
		t.Fatalf("failure message = %q", result.Failure.Message)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if _, err := w.Write([]byte(`{"data": [{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}]}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1/chat/completions", Model: "gpt-4o"})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-4o" || models[1] != "gpt-4o-mini" {
		t.Fatalf("models = %v", models)
	}
}

func TestAvailableRequiresCredentials(t *testing.T) {
	client := New(Config{Model: "gpt-4o"})
	if err := client.Available(context.Background()); err == nil {
		t.Fatal("expected error when api key missing")
	}
	client = New(Config{APIKey: "test-key"})
	if err := client.Available(context.Background()); err == nil {
		t.Fatal("expected error when model missing")
	}
	client = New(Config{APIKey: "test-key", Model: "gpt-4o"})
	if err := client.Available(context.Background()); err != nil {
		t.Fatalf("available: %v", err)
	}
}
