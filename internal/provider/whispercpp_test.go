package provider

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestWhisperCppModelPath(t *testing.T) {
	path, err := ModelPath("base.en")
	if err != nil {
		t.Fatalf("ModelPath: %v", err)
	}
	if !strings.HasSuffix(path, "models/whisper/ggml-base.en.bin") {
		t.Errorf("unexpected path: %s", path)
	}

	if _, err := ModelPath("bogus-model"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestWhisperCppMissingModel(t *testing.T) {
	w, err := NewWhisperCpp("tiny", 2)
	if err != nil {
		t.Fatalf("NewWhisperCpp: %v", err)
	}
	w.modelPath = "/nonexistent/ggml-tiny.bin"

	if w.IsModelLoaded() {
		t.Error("missing model file should report not loaded")
	}
	if _, ok := w.CurrentModel(); ok {
		t.Error("CurrentModel should report no model")
	}

	_, err = w.Transcribe(context.Background(), make([]float32, MinSamples), "")
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("got %v, want ErrModelNotLoaded", err)
	}
}

func TestWhisperCppTooShort(t *testing.T) {
	w, _ := NewWhisperCpp("base.en", 0)
	_, err := w.Transcribe(context.Background(), make([]float32, 10), "")
	var tooShort *AudioTooShortError
	if !errors.As(err, &tooShort) {
		t.Errorf("got %v, want AudioTooShortError", err)
	}
}

func TestWavFromSamples(t *testing.T) {
	samples := make([]float32, 1600)
	data := wavFromSamples(samples)

	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		t.Fatal("missing WAVE marker")
	}

	// fmt chunk: PCM, mono, 16kHz, 16-bit.
	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		t.Errorf("format: got %d, want 1 (PCM)", format)
	}
	if channels := binary.LittleEndian.Uint16(data[22:24]); channels != 1 {
		t.Errorf("channels: got %d, want 1", channels)
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate: got %d, want 16000", rate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("bit depth: got %d, want 16", bits)
	}

	wantSize := uint32(len(samples) * 2)
	if size := binary.LittleEndian.Uint32(data[40:44]); size != wantSize {
		t.Errorf("data size: got %d, want %d", size, wantSize)
	}
	if uint32(len(data)) != 44+wantSize {
		t.Errorf("total size: got %d, want %d", len(data), 44+wantSize)
	}
}
