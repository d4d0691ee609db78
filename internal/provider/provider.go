// Package provider implements the transcription backends and the
// engine that routes audio to them.
package provider

import "context"

// Result is the outcome of transcribing one chunk. Providers that do
// not score their output leave HasConfidence false; such results are
// accepted without threshold filtering.
type Result struct {
	Text          string
	Confidence    float32
	HasConfidence bool
	IsPartial     bool
}

// Provider transcribes audio chunks. Implementations must be safe for
// use from a single worker goroutine.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Transcribe converts 16kHz mono samples to text. Returns
	// AudioTooShortError for inputs below MinSamples and
	// ErrModelNotLoaded when no model is available.
	Transcribe(ctx context.Context, samples []float32, language string) (Result, error)

	// IsModelLoaded reports whether the backend can accept audio now.
	IsModelLoaded() bool

	// CurrentModel returns the active model name, ok=false when none.
	CurrentModel() (string, bool)

	// ConfidenceThreshold is the minimum score for emitting a result.
	// Zero disables filtering.
	ConfidenceThreshold() float32

	// Close releases backend resources. Best-effort.
	Close(ctx context.Context) error
}

// engineSampleRate is the rate every provider consumes.
const engineSampleRate = 16000
