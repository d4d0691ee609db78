package provider

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
	"github.com/ponchovillalobos/maity-desktop/internal/models/whisper"
)

// WhisperCpp runs a local whisper.cpp model through the whisper-cli
// binary. No API key, no network, no confidence scores.
type WhisperCpp struct {
	modelName string
	modelPath string
	threads   int
	log       zerolog.Logger
}

// ModelPath returns where a whisper.cpp model file is expected on disk.
func ModelPath(model string) (string, error) {
	path := whisper.GetModelPath(model)
	if path == "" {
		return "", fmt.Errorf("unknown whisper model: %s", model)
	}
	return path, nil
}

func NewWhisperCpp(model string, threads int) (*WhisperCpp, error) {
	if model == "" {
		model = "base.en"
	}
	path, err := ModelPath(model)
	if err != nil {
		return nil, err
	}
	return &WhisperCpp{
		modelName: model,
		modelPath: path,
		threads:   threads,
		log:       logging.Component("whisper-cpp"),
	}, nil
}

func (w *WhisperCpp) Name() string { return "whisper-cpp" }

func (w *WhisperCpp) IsModelLoaded() bool {
	_, err := os.Stat(w.modelPath)
	return err == nil
}

func (w *WhisperCpp) CurrentModel() (string, bool) {
	if !w.IsModelLoaded() {
		return "", false
	}
	return w.modelName, true
}

// ConfidenceThreshold is zero: whisper-cli reports no scores, so every
// non-empty result is accepted.
func (w *WhisperCpp) ConfidenceThreshold() float32 { return 0 }

func (w *WhisperCpp) Close(context.Context) error { return nil }

func (w *WhisperCpp) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	if len(samples) < MinSamples {
		return Result{}, &AudioTooShortError{Samples: len(samples), Minimum: MinSamples}
	}
	if !w.IsModelLoaded() {
		return Result{}, ErrModelNotLoaded
	}

	cliPath, err := exec.LookPath("whisper-cli")
	if err != nil {
		return Result{}, &EngineError{Provider: w.Name(), Err: fmt.Errorf("whisper-cli not found: install whisper.cpp first")}
	}

	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("maity-%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(tmpFile, wavFromSamples(samples), 0600); err != nil {
		return Result{}, &EngineError{Provider: w.Name(), Err: fmt.Errorf("write temp file: %w", err)}
	}
	defer os.Remove(tmpFile)

	if language == "" {
		language = "auto"
	}

	args := []string{
		"-m", w.modelPath,
		"-l", language,
		"-nt", // no timestamps
		"-np", // no progress
		"-f", tmpFile,
	}
	if w.threads > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", w.threads))
	}

	cmd := exec.CommandContext(ctx, cliPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		w.log.Warn().Err(err).Dur("elapsed", elapsed).Str("stderr", stderr.String()).Msg("whisper-cli failed")
		return Result{}, &EngineError{Provider: w.Name(), Err: err}
	}

	text := strings.TrimSpace(stdout.String())
	w.log.Debug().Int("samples", len(samples)).Dur("elapsed", elapsed).Msg("chunk transcribed")

	return Result{Text: text}, nil
}

// wavFromSamples wraps 16kHz mono samples in a 16-bit PCM WAV container
// for hand-off to external tools and APIs.
func wavFromSamples(samples []float32) []byte {
	pcm := audio.ToPCM16(samples)

	const (
		channels      = 1
		bitsPerSample = 16
		byteRate      = engineSampleRate * channels * bitsPerSample / 8
		blockAlign    = channels * bitsPerSample / 8
	)

	var buf bytes.Buffer
	writeU32 := func(v uint32) {
		buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
	writeU16 := func(v uint16) {
		buf.Write([]byte{byte(v), byte(v >> 8)})
	}

	buf.WriteString("RIFF")
	writeU32(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeU32(16)
	writeU16(1)
	writeU16(channels)
	writeU32(engineSampleRate)
	writeU32(byteRate)
	writeU16(blockAlign)
	writeU16(bitsPerSample)

	buf.WriteString("data")
	writeU32(uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
