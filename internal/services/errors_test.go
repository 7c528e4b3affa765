package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lumen/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "convert", "extract frames", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"convert", "extract frames", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "engine", "dispatch", "hiccup", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"timeout", services.Wrap(services.ErrTimeout, "provider", "describe", "deadline", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "provider", "describe", "503", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "discovery", "walk", "bad root", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "missing key", nil), false},
		{"plain", errors.New("unknown"), false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.retryable {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.retryable)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, "photos/img_0001.jpg")
	ctx = services.WithProvider(ctx, "ollama")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "photos/img_0001.jpg" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if name, ok := services.ProviderFromContext(ctx); !ok || name != "ollama" {
		t.Fatalf("unexpected provider: %v %v", name, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithProvider(context.Background(), "")
	if _, ok := services.ProviderFromContext(ctx); ok {
		t.Fatal("expected no provider value")
	}
}
