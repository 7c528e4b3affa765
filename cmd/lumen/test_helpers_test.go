package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lumen/internal/config"
)

type cliTestEnv struct {
	cfg        config.Config
	configPath string
	baseDir    string
	mediaDir   string
	docPath    string
}

// setupCLITestEnv builds an isolated config pointing every path at a temp
// directory and enables only the OpenAI provider against providerURL.
func setupCLITestEnv(t *testing.T, providerURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.DerivedDir = filepath.Join(base, "derived")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.GeocodeCache = filepath.Join(base, "geocode.db")
	cfg.Providers.Ollama.Enabled = false
	cfg.Providers.OpenAI.Enabled = true
	cfg.Providers.OpenAI.APIKey = "test-key"
	cfg.Providers.OpenAI.BaseURL = providerURL
	cfg.Workflow.Workers = 1
	cfg.Workflow.RetryAttempts = 1
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	mediaDir := filepath.Join(base, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatalf("mkdir media: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		mediaDir:   mediaDir,
		docPath:    filepath.Join(cfg.Paths.WorkspaceDir, documentFileName),
	}
}

func writeTestConfig(t *testing.T, path string, cfg config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
		t.Fatalf("write image %s: %v", name, err)
	}
	return path
}

// newProviderStub serves OpenAI-compatible chat completions with a fixed
// description for every request.
func newProviderStub(t *testing.T, text string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := `{"choices": [{"message": {"content": ` + jsonString(text) + `}, "finish_reason": "stop"}],` +
			`"usage": {"prompt_tokens": 100, "completion_tokens": 10}}`
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// newFailingProviderStub always rejects with 401 so items fail permanently.
func newFailingProviderStub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	return server
}

func jsonString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
