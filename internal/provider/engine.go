package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/config"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

// Engine is the per-session front door to transcription. Sync backends
// share one provider across devices; streaming backends hold one
// persistent connection per transcribable device.
type Engine struct {
	name     string
	provider Provider
	streams  map[audio.DeviceType]*StreamingConnection
	log      zerolog.Logger
}

// Resolve builds an engine from configuration. hooks are only used by
// streaming backends.
func Resolve(cfg *config.Config, hooks StreamHooks) (*Engine, error) {
	tc := cfg.Transcription
	log := logging.Component("engine")

	switch tc.Provider {
	case "whisper-cpp":
		p, err := NewWhisperCpp(tc.Model, tc.Threads)
		if err != nil {
			return nil, err
		}
		return &Engine{name: p.Name(), provider: p, log: log}, nil

	case "openai":
		p := NewOpenAI(cfg.APIKeyFor("openai"), tc.Model)
		return &Engine{name: p.Name(), provider: p, log: log}, nil

	case "groq":
		p := NewGroq(cfg.APIKeyFor("groq"), tc.Model, cfg.BaseURLFor("groq"))
		return &Engine{name: p.Name(), provider: p, log: log}, nil

	case "deepgram":
		streams := make(map[audio.DeviceType]*StreamingConnection)
		for _, device := range []audio.DeviceType{audio.DeviceMicrophone, audio.DeviceSystem} {
			streams[device] = NewStreamingConnection(StreamConfig{
				BaseURL:  cfg.BaseURLFor("deepgram"),
				APIKey:   cfg.APIKeyFor("deepgram"),
				Model:    tc.Model,
				Language: tc.Language,
				Device:   device,
			}, hooks)
		}
		return &Engine{name: "deepgram", streams: streams, log: log}, nil

	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", tc.Provider)
	}
}

func (e *Engine) Name() string { return e.name }

// IsStreaming reports whether results arrive asynchronously.
func (e *Engine) IsStreaming() bool { return e.streams != nil }

func (e *Engine) IsModelLoaded() bool {
	if e.streams != nil {
		for _, s := range e.streams {
			if !s.IsModelLoaded() {
				return false
			}
		}
		return true
	}
	return e.provider.IsModelLoaded()
}

func (e *Engine) CurrentModel() (string, bool) {
	if e.streams != nil {
		for _, s := range e.streams {
			return s.CurrentModel()
		}
		return "", false
	}
	return e.provider.CurrentModel()
}

func (e *Engine) ConfidenceThreshold() float32 {
	if e.streams != nil {
		return cloudConfidenceThreshold
	}
	return e.provider.ConfidenceThreshold()
}

// ValidateReady fails fast when a session cannot possibly transcribe,
// with a message telling the user what to fix.
func (e *Engine) ValidateReady() error {
	if e.IsModelLoaded() {
		return nil
	}
	switch e.name {
	case "whisper-cpp":
		return fmt.Errorf("whisper model not found: download one with the model installer or set transcription.model")
	default:
		return fmt.Errorf("%s API key missing: set providers.%s.api_key or the environment variable", e.name, e.name)
	}
}

// QueueChunkInfo records chunk timings for streaming result
// correlation. No-op for sync backends and the mixed device.
func (e *Engine) QueueChunkInfo(device audio.DeviceType, start, end, duration float64) {
	if e.streams == nil || device == audio.DeviceMixed {
		return
	}
	if s, ok := e.streams[device]; ok {
		s.QueueChunkInfo(start, end, duration)
	}
}

// Transcribe routes a chunk to the backend handling its device.
func (e *Engine) Transcribe(ctx context.Context, device audio.DeviceType, samples []float32, language string) (Result, error) {
	if device == audio.DeviceMixed {
		return Result{}, nil
	}
	if e.streams != nil {
		s, ok := e.streams[device]
		if !ok {
			return Result{}, fmt.Errorf("no stream for device %s", device)
		}
		return s.Transcribe(ctx, samples, language)
	}
	return e.provider.Transcribe(ctx, samples, language)
}

// CloseStreams finishes every streaming connection, letting in-flight
// results drain. No-op for sync backends.
func (e *Engine) CloseStreams(ctx context.Context) {
	for device, s := range e.streams {
		if err := s.Close(ctx); err != nil {
			e.log.Warn().Err(err).Str("device", string(device)).Msg("stream close failed")
		}
	}
}

// Unload releases backend resources. Failures are logged, never fatal.
func (e *Engine) Unload(ctx context.Context) {
	if e.provider != nil {
		if err := e.provider.Close(ctx); err != nil {
			e.log.Warn().Err(err).Msg("provider unload failed")
		}
	}
	e.CloseStreams(ctx)
}
