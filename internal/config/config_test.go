package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lumen/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.Workflow.Workers)
	}
	if !cfg.Providers.Ollama.Enabled {
		t.Fatal("expected ollama enabled by default")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[workflow]
workers = 6
retry_attempts = 5

[discovery]
types = ["IMAGE", "image", "video"]

[providers.openai]
enabled = true
api_key = "sk-test"

[providers.openai.options]
temperature = 0.7
unsupported_knob = "ignored"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Workflow.Workers != 6 {
		t.Fatalf("expected 6 workers, got %d", cfg.Workflow.Workers)
	}
	if got := cfg.Discovery.Types; len(got) != 2 || got[0] != "image" || got[1] != "video" {
		t.Fatalf("expected deduplicated lowercased types, got %v", got)
	}
	if !cfg.Providers.OpenAI.Enabled {
		t.Fatal("expected openai enabled")
	}
	if _, ok := cfg.Providers.OpenAI.Options["unsupported_knob"]; !ok {
		t.Fatal("expected free-form option to survive decoding")
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[discovery]\ntypes = [\"audio\"]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "unknown media type") {
		t.Fatalf("expected unknown media type error, got %v", err)
	}
}

func TestValidateRequiresAPIKeyWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[providers.anthropic]\nenabled = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "api_key required") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestValidateRequiresSomeProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[providers.ollama]\nenabled = false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "at least one provider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspaces")
	cfg.Paths.DerivedDir = filepath.Join(base, "derived")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.GeocodeCache = filepath.Join(base, "cache", "geocode.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkspaceDir, cfg.Paths.DerivedDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.GeocodeCache)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
