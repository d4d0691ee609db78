package config

import "time"

// DefaultConfig is the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			CaptureSystem:     true,
			ChannelBufferSize: 64,
			AutoSave:          true,
		},
		Transcription: TranscriptionConfig{
			Provider: "whisper-cpp",
			Model:    "base.en",
			Language: "",
			Threads:  0,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:  2000,
			EnqueueTimeout: 5 * time.Second,
			DrainTimeout:   10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Providers: make(map[string]ProviderConfig),
	}
}
