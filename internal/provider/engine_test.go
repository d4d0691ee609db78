package provider

import (
	"context"
	"testing"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/config"
)

func TestResolveWhisperCpp(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transcription.Provider = "whisper-cpp"
	cfg.Transcription.Model = "base.en"

	engine, err := Resolve(cfg, StreamHooks{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if engine.Name() != "whisper-cpp" {
		t.Errorf("name: got %q", engine.Name())
	}
	if engine.IsStreaming() {
		t.Error("whisper-cpp should not be streaming")
	}
	if engine.ConfidenceThreshold() != 0 {
		t.Errorf("local engine threshold: got %f, want 0", engine.ConfidenceThreshold())
	}
}

func TestResolveDeepgram(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transcription.Provider = "deepgram"
	cfg.Transcription.Model = "nova-2"
	cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: "key"}

	engine, err := Resolve(cfg, StreamHooks{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !engine.IsStreaming() {
		t.Error("deepgram should be streaming")
	}
	if !engine.IsModelLoaded() {
		t.Error("engine with API key should report model loaded")
	}
	if err := engine.ValidateReady(); err != nil {
		t.Errorf("ValidateReady: %v", err)
	}
	if model, ok := engine.CurrentModel(); !ok || model != "nova-2" {
		t.Errorf("model: got %q, %v", model, ok)
	}
}

func TestResolveDeepgramWithoutKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	cfg := config.DefaultConfig()
	cfg.Transcription.Provider = "deepgram"

	engine, err := Resolve(cfg, StreamHooks{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if engine.IsModelLoaded() {
		t.Error("no key should mean not loaded")
	}
	if err := engine.ValidateReady(); err == nil {
		t.Error("ValidateReady should fail without a key")
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transcription.Provider = "psychic"
	if _, err := Resolve(cfg, StreamHooks{}); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestEngineMixedDeviceIsNoop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transcription.Provider = "deepgram"
	cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: "key"}

	engine, err := Resolve(cfg, StreamHooks{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Mixed audio is recording-only. No queueing, no network calls.
	engine.QueueChunkInfo(audio.DeviceMixed, 0, 1, 1)
	for _, s := range engine.streams {
		if s.PendingCount() != 0 {
			t.Error("mixed chunk info should not be queued")
		}
	}

	res, err := engine.Transcribe(context.Background(), audio.DeviceMixed, make([]float32, MinSamples), "")
	if err != nil {
		t.Errorf("mixed transcribe should be a no-op, got %v", err)
	}
	if res.Text != "" {
		t.Errorf("mixed transcribe returned text %q", res.Text)
	}
}

func TestEngineQueueChunkInfoPerDevice(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transcription.Provider = "deepgram"
	cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: "key"}

	engine, _ := Resolve(cfg, StreamHooks{})
	engine.QueueChunkInfo(audio.DeviceMicrophone, 0, 2, 2)
	engine.QueueChunkInfo(audio.DeviceMicrophone, 2, 4, 2)
	engine.QueueChunkInfo(audio.DeviceSystem, 0, 3, 3)

	if n := engine.streams[audio.DeviceMicrophone].PendingCount(); n != 2 {
		t.Errorf("mic pending: got %d, want 2", n)
	}
	if n := engine.streams[audio.DeviceSystem].PendingCount(); n != 1 {
		t.Errorf("system pending: got %d, want 1", n)
	}
}
