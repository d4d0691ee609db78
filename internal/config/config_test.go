package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.Recording.SampleRate != 16000 {
		t.Errorf("default sample rate: got %d", cfg.Recording.SampleRate)
	}
	if cfg.Pipeline.QueueCapacity != 2000 {
		t.Errorf("default queue capacity: got %d", cfg.Pipeline.QueueCapacity)
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Transcription.Provider != "whisper-cpp" {
		t.Errorf("got provider %q, want whisper-cpp", cfg.Transcription.Provider)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[transcription]
provider = "deepgram"
model = "nova-2"
language = "en"

[recording]
sample_rate = 48000

[providers.deepgram]
api_key = "dg-test-key"

[accumulator]
tier = "high"

[pipeline]
queue_capacity = 500
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Transcription.Provider != "deepgram" {
		t.Errorf("provider: got %q", cfg.Transcription.Provider)
	}
	if cfg.Recording.SampleRate != 48000 {
		t.Errorf("sample rate: got %d", cfg.Recording.SampleRate)
	}
	if cfg.APIKeyFor("deepgram") != "dg-test-key" {
		t.Errorf("api key: got %q", cfg.APIKeyFor("deepgram"))
	}
	if cfg.Pipeline.QueueCapacity != 500 {
		t.Errorf("queue capacity: got %d", cfg.Pipeline.QueueCapacity)
	}
	// Unset fields still get defaults.
	if cfg.Recording.Channels != 1 {
		t.Errorf("channels default: got %d", cfg.Recording.Channels)
	}
	if cfg.Pipeline.EnqueueTimeout != 5*time.Second {
		t.Errorf("enqueue timeout default: got %v", cfg.Pipeline.EnqueueTimeout)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Recording.SampleRate = 0 }},
		{"bad channels", func(c *Config) { c.Recording.Channels = 3 }},
		{"empty provider", func(c *Config) { c.Transcription.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Transcription.Provider = "ibm-watson" }},
		{"bad whisper model", func(c *Config) { c.Transcription.Model = "huge-v9" }},
		{"bad language", func(c *Config) { c.Transcription.Language = "klingon" }},
		{"bad tier", func(c *Config) { c.Accumulator.Tier = "turbo" }},
		{"min above max", func(c *Config) {
			c.Accumulator.MinDuration = 10 * time.Second
			c.Accumulator.MaxDuration = 5 * time.Second
		}},
		{"zero queue", func(c *Config) { c.Pipeline.QueueCapacity = 0 }},
		{"metrics without listen", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Listen = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateCloudProviderNeedsKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	cfg := DefaultConfig()
	cfg.Transcription.Provider = "deepgram"
	cfg.Transcription.Model = "nova-2"
	if err := cfg.Validate(); err == nil {
		t.Error("deepgram without key should fail validation")
	}

	cfg.Providers["deepgram"] = ProviderConfig{APIKey: "k"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("deepgram with key should validate: %v", err)
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg := DefaultConfig()
	if got := cfg.APIKeyFor("openai"); got != "env-key" {
		t.Errorf("got %q, want env-key", got)
	}
	// Config value wins over environment.
	cfg.Providers["openai"] = ProviderConfig{APIKey: "cfg-key"}
	if got := cfg.APIKeyFor("openai"); got != "cfg-key" {
		t.Errorf("got %q, want cfg-key", got)
	}
}
