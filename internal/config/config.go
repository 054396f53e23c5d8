// Package config handles Hearth configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./hearth.yaml, ~/.config/hearth/hearth.yaml, /etc/hearth/hearth.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"hearth.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hearth", "hearth.yaml"))
	}

	paths = append(paths, "/etc/hearth/hearth.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Hearth configuration.
type Config struct {
	Listen   ListenConfig  `yaml:"listen"`
	Model    ModelConfig   `yaml:"model"`
	Agent    AgentConfig   `yaml:"agent"`
	Devices  DevicesConfig `yaml:"devices"`
	Sim      SimConfig     `yaml:"sim"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	DataDir  string        `yaml:"data_dir"`
	LogLevel string        `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address      string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port         int    `yaml:"port"`
	CORSAllowAll bool   `yaml:"cors_allow_all"` // allow any origin (dev mode)
}

// ModelConfig defines the language model endpoint settings. The endpoint
// must speak the OpenAI chat-completions protocol (OpenAI, DashScope
// compatible mode, LiteLLM, and friends).
type ModelConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Name       string `yaml:"name"`
	TimeoutSec int    `yaml:"timeout_sec"` // per-call deadline (default 10)
	MaxTokens  int    `yaml:"max_tokens"`  // output cap (default 300)
	Workers    int    `yaml:"workers"`     // bounded in-flight calls (default 2)
}

// AgentConfig tunes the conversation manager.
type AgentConfig struct {
	MaxContext    int `yaml:"max_context"`    // bounded history length (default 10)
	CooldownSec   int `yaml:"cooldown_sec"`   // min gap between proactive suggestions (default 10)
	HistoryWindow int `yaml:"history_window"` // messages interleaved into prompts (default 6)
}

// DevicesConfig selects the device controller. When RemoteURL is set,
// device updates are sent to an external device service over HTTP;
// otherwise the local SQLite registry is used.
type DevicesConfig struct {
	RemoteURL string `yaml:"remote_url"`
}

// SimConfig controls the simulated environment tick.
type SimConfig struct {
	Enabled bool `yaml:"enabled"`
	TickSec int  `yaml:"tick_sec"` // snapshot sampling interval (default 30)
}

// MQTTConfig defines the optional status publisher.
type MQTTConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	DeviceName         string `yaml:"device_name"`
	DiscoveryPrefix    string `yaml:"discovery_prefix"`
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Model: ModelConfig{
			Name:       "qwen-turbo",
			TimeoutSec: 10,
			MaxTokens:  300,
			Workers:    2,
		},
		Agent: AgentConfig{
			MaxContext:    10,
			CooldownSec:   10,
			HistoryWindow: 6,
		},
		Sim: SimConfig{
			Enabled: true,
			TickSec: 30,
		},
		MQTT: MQTTConfig{
			DeviceName:         "hearth",
			DiscoveryPrefix:    "homeassistant",
			PublishIntervalSec: 60,
		},
		DataDir: ".",
	}
}
