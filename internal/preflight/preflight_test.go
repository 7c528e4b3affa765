package preflight

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"lumen/internal/provider"
	"lumen/internal/testsupport"
)

type stubProvider struct {
	name string
	err  error
}

func (s *stubProvider) Name() string                                { return s.name }
func (s *stubProvider) Available(context.Context) error             { return s.err }
func (s *stubProvider) ListModels(context.Context) ([]string, error) { return nil, nil }
func (s *stubProvider) Describe(context.Context, provider.DescribeRequest) (provider.DescribeResult, error) {
	return provider.DescribeResult{}, nil
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Workspace directory", dir)
	if !result.Passed {
		t.Fatalf("result = %+v", result)
	}

	result = CheckDirectoryAccess("Workspace directory", filepath.Join(dir, "missing"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("result = %+v", result)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := CheckDiskSpace("Disk", t.TempDir())
	// Temp dirs in CI always have some space; the check should pass and
	// report a figure.
	if !result.Passed || !strings.Contains(result.Detail, "MiB free") {
		t.Fatalf("result = %+v", result)
	}
	result = CheckDiskSpace("Disk", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatalf("result = %+v", result)
	}
}

func TestCheckBinary(t *testing.T) {
	testsupport.StubBinary(t, "fakeconv", "#!/bin/sh\nexit 0\n")
	result := CheckBinary("Converter", "fakeconv", "conversion")
	if !result.Passed {
		t.Fatalf("result = %+v", result)
	}
	result = CheckBinary("Converter", "definitely-not-a-real-binary", "conversion")
	if result.Passed {
		t.Fatalf("result = %+v", result)
	}
	result = CheckBinary("Converter", "", "conversion")
	if result.Passed || !strings.Contains(result.Detail, "not configured") {
		t.Fatalf("result = %+v", result)
	}
}

func TestCheckProvider(t *testing.T) {
	result := CheckProvider(context.Background(), &stubProvider{name: "stub"})
	if !result.Passed || result.Name != "Provider stub" {
		t.Fatalf("result = %+v", result)
	}
	result = CheckProvider(context.Background(), &stubProvider{name: "stub", err: errors.New("daemon down")})
	if result.Passed || result.Detail != "daemon down" {
		t.Fatalf("result = %+v", result)
	}
}

func TestPassed(t *testing.T) {
	if !Passed([]Result{{Passed: true}, {Passed: true}}) {
		t.Fatal("expected pass")
	}
	if Passed([]Result{{Passed: true}, {Passed: false}}) {
		t.Fatal("expected fail")
	}
	if !Passed(nil) {
		t.Fatal("empty results should pass")
	}
}

func TestRunAllCoversConfiguredChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	registry, err := provider.NewRegistry(&stubProvider{name: "stub"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	results := RunAll(context.Background(), cfg, registry)
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{
		"Workspace directory", "Derived media directory", "Derived media disk space",
		"FFmpeg", "HEIC converter", "Provider stub",
	} {
		if !names[want] {
			t.Fatalf("missing check %q in %v", want, names)
		}
	}
}
