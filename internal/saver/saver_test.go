package saver

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/history"
	"github.com/ponchovillalobos/maity-desktop/internal/testutil"
)

func TestSaveWritesTranscriptAndRecording(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "standup", 16000)

	samples := testutil.SineWave(440, 1.0, 16000)
	s.AppendMixed(audio.Chunk{Samples: samples[:8000], SampleRate: 16000, Device: audio.DeviceMixed})
	s.AppendMixed(audio.Chunk{Samples: samples[8000:], SampleRate: 16000, Device: audio.DeviceMixed})

	if got := s.BufferedDuration(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("buffered duration = %v, want 1.0", got)
	}

	segs := []history.Segment{
		{Text: "hello", SequenceID: 1, Source: "microphone", SourceType: "user"},
		{Text: "hi there", SequenceID: 2, Source: "system", SourceType: "interlocutor"},
	}
	folder, err := s.Save(context.Background(), segs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(folder, "transcript.json"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	var doc Transcript
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if doc.Meeting != "standup" {
		t.Errorf("meeting = %q", doc.Meeting)
	}
	if len(doc.Segments) != 2 || doc.Segments[1].Text != "hi there" {
		t.Errorf("unexpected segments: %+v", doc.Segments)
	}
	if math.Abs(doc.Duration-1.0) > 1e-9 {
		t.Errorf("duration = %v, want 1.0", doc.Duration)
	}

	f, err := os.Open(filepath.Join(folder, "recording.wav"))
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	if len(buf.Data) != 16000 {
		t.Errorf("recording has %d samples, want 16000", len(buf.Data))
	}
	if int(dec.SampleRate) != 16000 {
		t.Errorf("sample rate = %d", dec.SampleRate)
	}
}

func TestSaveWithoutAudioSkipsRecording(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "", 16000)

	folder, err := s.Save(context.Background(), nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(folder, "transcript.json")); err != nil {
		t.Errorf("transcript missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(folder, "recording.wav")); !os.IsNotExist(err) {
		t.Errorf("expected no recording.wav, stat err = %v", err)
	}

	var doc Transcript
	data, _ := os.ReadFile(filepath.Join(folder, "transcript.json"))
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if doc.Segments == nil || len(doc.Segments) != 0 {
		t.Errorf("expected empty segment list, got %+v", doc.Segments)
	}
}

func TestSaveCanceledContext(t *testing.T) {
	s := New(t.TempDir(), "m", 16000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Save(ctx, nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
