package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies a describe failure so the engine can decide whether a
// retry slot should be spent on it.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureServer      FailureKind = "server"
	FailureNetwork     FailureKind = "network"
	FailureTruncated   FailureKind = "truncated"
	FailureAuth        FailureKind = "auth"
	FailureBadRequest  FailureKind = "bad_request"
	FailureNotFound    FailureKind = "not_found"
)

// Retryable reports whether spending another attempt on this failure kind can
// plausibly succeed. Auth and request-shape problems never heal on retry.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureRateLimited, FailureServer, FailureNetwork, FailureTruncated:
		return true
	default:
		return false
	}
}

// Failure is a structured, predictable describe failure. Providers return it
// inside DescribeResult rather than as an error so the engine can apply one
// retry policy across heterogeneous backends.
type Failure struct {
	Kind       FailureKind
	Message    string
	RetryAfter time.Duration
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// DescribeRequest carries one image to a provider. ImageData takes precedence
// when both it and ImagePath are set; providers that need the other form
// convert as required.
type DescribeRequest struct {
	ImagePath string
	ImageData []byte
	Prompt    string
	Model     string
	Options   Options
}

// DescribeResult is the outcome of a single describe attempt. Text may be the
// empty string alongside a nil Failure: the provider answered successfully but
// produced no content, which is a distinct terminal outcome.
type DescribeResult struct {
	Text         string
	Model        string
	FinishReason string
	TokensIn     int
	TokensOut    int
	Failure      *Failure
}

// Provider is the uniform capability contract every description backend
// implements. Describe performs exactly one attempt; retry and backoff policy
// belongs to the workflow engine so it stays identical across backends.
// Predictable failures (timeouts, rate limits, upstream errors, empty
// content) come back inside DescribeResult; the error return is reserved for
// malformed local state.
type Provider interface {
	Name() string
	Available(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, req DescribeRequest) (DescribeResult, error)
}

// ClassifyEmptyContent decides what a successful response with no content
// means. A finish reason signaling the token limit ("length" on
// OpenAI-compatible APIs, "max_tokens" on Anthropic's) indicates truncation
// before any output token, which a retry may fix; every other finish reason
// is accepted as a legal empty-text completion.
func ClassifyEmptyContent(finishReason string) *Failure {
	switch strings.ToLower(strings.TrimSpace(finishReason)) {
	case "length", "max_tokens":
		return &Failure{
			Kind:    FailureTruncated,
			Message: fmt.Sprintf("response truncated before any content (finish reason %q)", finishReason),
		}
	}
	return nil
}
