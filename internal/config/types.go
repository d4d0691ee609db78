package config

import (
	"os"
	"time"

	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

type Config struct {
	Logging       logging.Config            `toml:"logging"`
	Recording     RecordingConfig           `toml:"recording"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Accumulator   AccumulatorConfig         `toml:"accumulator"`
	Pipeline      PipelineConfig            `toml:"pipeline"`
	Metrics       MetricsConfig             `toml:"metrics"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	MicDevice         string `toml:"mic_device"`    // "" = system default
	SystemDevice      string `toml:"system_device"` // "" = system default loopback
	CaptureSystem     bool   `toml:"capture_system"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
	MeetingDir        string `toml:"meeting_dir"` // "" = <user config dir>/maity/meetings
	AutoSave          bool   `toml:"auto_save"`
}

type TranscriptionConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	Threads  int    `toml:"threads"` // 0 = auto from hardware profile
}

// AccumulatorConfig overrides the hardware-derived chunking thresholds.
// Zero values mean "use the detected tier".
type AccumulatorConfig struct {
	Tier         string        `toml:"tier"` // "", "low", "medium", "high", "ultra"
	MinDuration  time.Duration `toml:"min_duration"`
	MaxDuration  time.Duration `toml:"max_duration"`
	FlushTimeout time.Duration `toml:"flush_timeout"`
}

type PipelineConfig struct {
	QueueCapacity  int           `toml:"queue_capacity"`
	EnqueueTimeout time.Duration `toml:"enqueue_timeout"`
	DrainTimeout   time.Duration `toml:"drain_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// ProviderConfig holds per-provider credentials.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// APIKeyFor resolves a provider API key from config, falling back to
// the conventional environment variable.
func (c *Config) APIKeyFor(provider string) string {
	if pc, ok := c.Providers[provider]; ok && pc.APIKey != "" {
		return pc.APIKey
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "deepgram":
		return os.Getenv("DEEPGRAM_API_KEY")
	}
	return ""
}

// BaseURLFor returns a provider base URL override, or "".
func (c *Config) BaseURLFor(provider string) string {
	if pc, ok := c.Providers[provider]; ok {
		return pc.BaseURL
	}
	return ""
}
