package provider_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"lumen/internal/provider"
)

type fakeProvider struct {
	name         string
	availableErr error
}

func (f *fakeProvider) Name() string                            { return f.name }
func (f *fakeProvider) Available(context.Context) error         { return f.availableErr }
func (f *fakeProvider) ListModels(context.Context) ([]string, error) { return nil, nil }
func (f *fakeProvider) Describe(context.Context, provider.DescribeRequest) (provider.DescribeResult, error) {
	return provider.DescribeResult{}, nil
}

func TestFailureKindRetryable(t *testing.T) {
	cases := []struct {
		kind      provider.FailureKind
		retryable bool
	}{
		{provider.FailureTimeout, true},
		{provider.FailureRateLimited, true},
		{provider.FailureServer, true},
		{provider.FailureNetwork, true},
		{provider.FailureTruncated, true},
		{provider.FailureAuth, false},
		{provider.FailureBadRequest, false},
		{provider.FailureNotFound, false},
	}
	for _, tc := range cases {
		if got := tc.kind.Retryable(); got != tc.retryable {
			t.Fatalf("%s: Retryable = %v, want %v", tc.kind, got, tc.retryable)
		}
	}
}

func TestClassifyEmptyContent(t *testing.T) {
	if failure := provider.ClassifyEmptyContent("length"); failure == nil || failure.Kind != provider.FailureTruncated {
		t.Fatalf("expected truncated failure for finish_reason=length, got %v", failure)
	}
	if failure := provider.ClassifyEmptyContent("LENGTH"); failure == nil {
		t.Fatal("expected case-insensitive match")
	}
	if failure := provider.ClassifyEmptyContent("max_tokens"); failure == nil || failure.Kind != provider.FailureTruncated {
		t.Fatalf("expected truncated failure for finish_reason=max_tokens, got %v", failure)
	}
	for _, reason := range []string{"stop", "end_turn", ""} {
		if failure := provider.ClassifyEmptyContent(reason); failure != nil {
			t.Fatalf("expected nil failure for finish_reason=%q, got %v", reason, failure)
		}
	}
}

func TestFailureFromStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   provider.FailureKind
	}{
		{http.StatusUnauthorized, provider.FailureAuth},
		{http.StatusForbidden, provider.FailureAuth},
		{http.StatusNotFound, provider.FailureNotFound},
		{http.StatusTooManyRequests, provider.FailureRateLimited},
		{http.StatusRequestTimeout, provider.FailureTimeout},
		{http.StatusInternalServerError, provider.FailureServer},
		{http.StatusBadGateway, provider.FailureServer},
		{http.StatusBadRequest, provider.FailureBadRequest},
		{http.StatusUnprocessableEntity, provider.FailureBadRequest},
	}
	for _, tc := range cases {
		failure := provider.FailureFromStatus(tc.status, "detail", 0)
		if failure.Kind != tc.kind {
			t.Fatalf("status %d: kind = %s, want %s", tc.status, failure.Kind, tc.kind)
		}
	}

	withRetry := provider.FailureFromStatus(http.StatusTooManyRequests, "slow down", 3*time.Second)
	if withRetry.RetryAfter != 3*time.Second {
		t.Fatalf("expected RetryAfter preserved, got %v", withRetry.RetryAfter)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := provider.ParseRetryAfter("5"); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
	if got := provider.ParseRetryAfter(""); got != 0 {
		t.Fatalf("expected 0 for empty header, got %v", got)
	}
	if got := provider.ParseRetryAfter("-2"); got != 0 {
		t.Fatalf("expected 0 for negative header, got %v", got)
	}
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := provider.ParseRetryAfter(future); got <= 0 || got > 31*time.Second {
		t.Fatalf("expected ~30s for HTTP-date header, got %v", got)
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	a := &fakeProvider{name: "ollama"}
	b := &fakeProvider{name: "openai", availableErr: errors.New("api key missing")}
	reg, err := provider.NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if names := reg.Names(); len(names) != 2 || names[0] != "ollama" || names[1] != "openai" {
		t.Fatalf("unexpected names: %v", names)
	}
	if _, ok := reg.Get("openai"); !ok {
		t.Fatal("expected lookup to find openai")
	}

	ready, failed := reg.Available(context.Background())
	if len(ready) != 1 || ready[0].Name() != "ollama" {
		t.Fatalf("expected only ollama ready, got %v", ready)
	}
	if _, ok := failed["openai"]; !ok {
		t.Fatal("expected openai in failed map")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := provider.NewRegistry(&fakeProvider{name: "x"}, &fakeProvider{name: "x"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestOptionsAccessors(t *testing.T) {
	opts := provider.Options{
		"temperature": 0.4,
		"max_tokens":  int64(512),
		"style":       "vivid",
	}
	if v, ok := opts.Float64("temperature"); !ok || v != 0.4 {
		t.Fatalf("Float64 = %v %v", v, ok)
	}
	if v, ok := opts.Int("max_tokens"); !ok || v != 512 {
		t.Fatalf("Int = %v %v", v, ok)
	}
	if v, ok := opts.String("style"); !ok || v != "vivid" {
		t.Fatalf("String = %v %v", v, ok)
	}
	if _, ok := opts.Int("missing"); ok {
		t.Fatal("expected missing option to report absent")
	}
	if _, ok := opts.Float64("style"); ok {
		t.Fatal("expected type mismatch to report absent")
	}
}

func TestPromptText(t *testing.T) {
	if got := provider.PromptText("concise", ""); got == "" || got == provider.PromptText("detailed", "") {
		t.Fatal("expected distinct concise prompt")
	}
	if got := provider.PromptText("unknown-style", ""); got != provider.PromptText("detailed", "") {
		t.Fatal("expected unknown style to fall back to detailed")
	}
	if got := provider.PromptText("concise", "custom words"); got != "custom words" {
		t.Fatalf("expected custom prompt to win, got %q", got)
	}
}
