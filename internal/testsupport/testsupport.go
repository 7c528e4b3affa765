package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"lumen/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.DerivedDir = filepath.Join(base, "derived")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.GeocodeCache = filepath.Join(base, "geocode.sqlite")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOpenAI enables the OpenAI provider with a test key.
func WithOpenAI(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.OpenAI.Enabled = true
		b.cfg.Providers.OpenAI.APIKey = "test"
		b.cfg.Providers.OpenAI.BaseURL = baseURL
	}
}

// WithWorkers overrides the worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithStubbedBinaries writes always-succeeding stub executables for the
// provided names and prepends them to PATH. If names is empty, the default
// external binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "heif-convert"}
		}
		for _, name := range names {
			StubBinary(b.t, name, "#!/bin/sh\nexit 0\n")
		}
	}
}

// StubBinary writes an executable shell script with the given name into a
// fresh bin directory and prepends that directory to PATH for the rest of
// the test.
func StubBinary(t testing.TB, name, script string) string {
	t.Helper()

	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
	return target
}

// WriteMediaFile creates a small fake media file under dir and returns its
// path.
func WriteMediaFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir media dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("media-bytes"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return path
}
