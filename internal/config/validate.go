package config

import (
	"fmt"

	"github.com/ponchovillalobos/maity-desktop/internal/language"
	"github.com/ponchovillalobos/maity-desktop/internal/models/whisper"
)

func (c *Config) Validate() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels != 1 && c.Recording.Channels != 2 {
		return fmt.Errorf("invalid recording.channels: %d (must be 1 or 2)", c.Recording.Channels)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}

	if c.Transcription.Provider == "" {
		return fmt.Errorf("invalid transcription.provider: empty")
	}

	switch c.Transcription.Provider {
	case "whisper-cpp":
		if c.Transcription.Model != "" && whisper.GetModel(c.Transcription.Model) == nil {
			return fmt.Errorf("invalid model for whisper-cpp: %s (run 'maityd model list' for available models)", c.Transcription.Model)
		}

	case "openai":
		if c.APIKeyFor("openai") == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		}

	case "groq":
		if c.APIKeyFor("groq") == "" {
			return fmt.Errorf("Groq API key required: not found in config (providers.groq.api_key) or environment variable (GROQ_API_KEY)")
		}
		validModels := map[string]bool{"whisper-large-v3": true, "whisper-large-v3-turbo": true}
		if c.Transcription.Model != "" && !validModels[c.Transcription.Model] {
			return fmt.Errorf("invalid model for groq: %s (must be whisper-large-v3 or whisper-large-v3-turbo)", c.Transcription.Model)
		}

	case "deepgram":
		if c.APIKeyFor("deepgram") == "" {
			return fmt.Errorf("Deepgram API key required: not found in config (providers.deepgram.api_key) or environment variable (DEEPGRAM_API_KEY)")
		}

	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be whisper-cpp, openai, groq, or deepgram)", c.Transcription.Provider)
	}

	if c.Transcription.Language != "" && !language.IsValidCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}

	if c.Accumulator.Tier != "" {
		valid := map[string]bool{"low": true, "medium": true, "high": true, "ultra": true}
		if !valid[c.Accumulator.Tier] {
			return fmt.Errorf("invalid accumulator.tier: %s (must be low, medium, high, or ultra)", c.Accumulator.Tier)
		}
	}
	if c.Accumulator.MinDuration < 0 || c.Accumulator.MaxDuration < 0 || c.Accumulator.FlushTimeout < 0 {
		return fmt.Errorf("accumulator durations must not be negative")
	}
	if c.Accumulator.MinDuration > 0 && c.Accumulator.MaxDuration > 0 && c.Accumulator.MinDuration > c.Accumulator.MaxDuration {
		return fmt.Errorf("accumulator.min_duration %v exceeds accumulator.max_duration %v", c.Accumulator.MinDuration, c.Accumulator.MaxDuration)
	}

	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("invalid pipeline.queue_capacity: %d", c.Pipeline.QueueCapacity)
	}
	if c.Pipeline.EnqueueTimeout <= 0 {
		return fmt.Errorf("invalid pipeline.enqueue_timeout: %v", c.Pipeline.EnqueueTimeout)
	}
	if c.Pipeline.DrainTimeout <= 0 {
		return fmt.Errorf("invalid pipeline.drain_timeout: %v", c.Pipeline.DrainTimeout)
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen required when metrics.enabled = true")
	}

	return nil
}
