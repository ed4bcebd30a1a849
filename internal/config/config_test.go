package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
	if cfg.Docstore.Image != "couchdb:3" || !cfg.Docstore.Managed {
		t.Errorf("docstore defaults = %+v", cfg.Docstore)
	}
	if cfg.Objstore.Bucket != "sprout-artifacts" {
		t.Errorf("objstore bucket = %s", cfg.Objstore.Bucket)
	}
	if cfg.GenAI.PollInterval != 15*time.Second {
		t.Errorf("poll interval = %v", cfg.GenAI.PollInterval)
	}
	if cfg.GenAI.PollTimeout != 20*time.Minute {
		t.Errorf("poll timeout = %v", cfg.GenAI.PollTimeout)
	}
	if cfg.Encode.Workers != 2 {
		t.Errorf("encode workers = %d", cfg.Encode.Workers)
	}
	if !strings.Contains(cfg.GenAI.APIKey, "${") {
		t.Errorf("default api key should be an env reference, got %q", cfg.GenAI.APIKey)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("SPROUT_TEST_KEY", "secret-value")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"${SPROUT_TEST_KEY}", "secret-value"},
		{"prefix-${SPROUT_TEST_KEY}-suffix", "prefix-secret-value-suffix"},
		{"${SPROUT_UNSET_VAR}", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	for _, want := range []string{"docstore:", "objstore:", "genai:", "couchdb:3", "sprout-artifacts"} {
		if !strings.Contains(content, want) {
			t.Errorf("written config missing %q", want)
		}
	}
}
