package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("HEARTH_TEST_KEY", "sk-test-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "hearth.yaml")
	data := `
listen:
  port: 9090
model:
  base_url: https://dashscope.aliyuncs.com/compatible-mode/v1
  api_key: ${HEARTH_TEST_KEY}
  name: qwen-turbo
agent:
  cooldown_sec: 15
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Listen.Port)
	}
	if cfg.Model.APIKey != "sk-test-123" {
		t.Errorf("api_key = %q, want expanded env value", cfg.Model.APIKey)
	}
	if cfg.Agent.CooldownSec != 15 {
		t.Errorf("cooldown_sec = %d, want 15", cfg.Agent.CooldownSec)
	}
	// Unset fields keep defaults.
	if cfg.Agent.MaxContext != 10 {
		t.Errorf("max_context = %d, want default 10", cfg.Agent.MaxContext)
	}
	if cfg.Model.TimeoutSec != 10 {
		t.Errorf("timeout_sec = %d, want default 10", cfg.Model.TimeoutSec)
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	_, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	if cfg.Listen.Port == 0 {
		t.Error("default port not set")
	}
	if cfg.Agent.MaxContext <= 0 {
		t.Error("default max_context not set")
	}
	if cfg.Model.MaxTokens != 300 {
		t.Errorf("default max_tokens = %d, want 300", cfg.Model.MaxTokens)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{"Debug", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
