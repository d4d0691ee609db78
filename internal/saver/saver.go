// Package saver persists a finished recording session to disk: the
// mixed playback track as a WAV file and the transcript as JSON.
package saver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/history"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

// SaveTimeout bounds how long finalization may take before the
// session gives up and reports an error.
const SaveTimeout = 5 * time.Minute

// Transcript is the on-disk JSON document written next to the
// recording.
type Transcript struct {
	Meeting    string            `json:"meeting"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   float64           `json:"duration_seconds"`
	SampleRate int               `json:"sample_rate"`
	Segments   []history.Segment `json:"segments"`
}

// Saver buffers the mixed audio track during a session and writes the
// meeting folder when the session stops.
type Saver struct {
	dir        string
	meeting    string
	sampleRate int
	startedAt  time.Time
	log        zerolog.Logger

	mu      sync.Mutex
	samples []float32
}

func New(dir, meeting string, sampleRate int) *Saver {
	if meeting == "" {
		meeting = "meeting"
	}
	return &Saver{
		dir:        dir,
		meeting:    meeting,
		sampleRate: sampleRate,
		startedAt:  time.Now(),
		log:        logging.Component("saver"),
	}
}

// AppendMixed buffers a mixed-track chunk for the final recording.
func (s *Saver) AppendMixed(chunk audio.Chunk) {
	s.mu.Lock()
	s.samples = append(s.samples, chunk.Samples...)
	s.mu.Unlock()
}

// BufferedDuration reports the mixed track length in seconds.
func (s *Saver) BufferedDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(len(s.samples)) / float64(s.sampleRate)
}

// Save writes the meeting folder and returns its path. The folder
// contains transcript.json and, when any mixed audio was captured,
// recording.wav.
func (s *Saver) Save(ctx context.Context, segments []history.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("save canceled: %w", err)
	}

	s.mu.Lock()
	samples := s.samples
	s.samples = nil
	s.mu.Unlock()

	folder := filepath.Join(s.dir, fmt.Sprintf("%s-%s", s.meeting, s.startedAt.Format("20060102-150405")))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create meeting folder: %w", err)
	}

	doc := Transcript{
		Meeting:    s.meeting,
		StartedAt:  s.startedAt,
		Duration:   float64(len(samples)) / float64(s.sampleRate),
		SampleRate: s.sampleRate,
		Segments:   segments,
	}
	if doc.Segments == nil {
		doc.Segments = []history.Segment{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, "transcript.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	if len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("save canceled: %w", err)
		}
		if err := s.writeWAV(filepath.Join(folder, "recording.wav"), samples); err != nil {
			return "", err
		}
	}

	s.log.Info().
		Str("folder", folder).
		Int("segments", len(segments)).
		Float64("audio_seconds", doc.Duration).
		Msg("session saved")
	return folder, nil
}

func (s *Saver) writeWAV(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, s.sampleRate, 16, 1, 1)
	pcm := audio.ToPCM16(samples)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: s.sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)),
	}
	for i, v := range pcm {
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize recording: %w", err)
	}
	return nil
}
