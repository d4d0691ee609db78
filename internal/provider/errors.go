package provider

import (
	"errors"
	"fmt"
)

// MinSamples is the shortest audio a provider will accept, 0.1s at 16kHz.
const MinSamples = 1600

// ErrModelNotLoaded is returned when transcription is attempted before
// the engine has a model available. The chunk is skipped, not failed.
var ErrModelNotLoaded = errors.New("model not loaded")

// AudioTooShortError flags a chunk below the provider minimum. Expected
// at the tail of a session; never surfaced to the user.
type AudioTooShortError struct {
	Samples int
	Minimum int
}

func (e *AudioTooShortError) Error() string {
	return fmt.Sprintf("audio too short: %d samples (minimum %d)", e.Samples, e.Minimum)
}

// EngineError wraps a provider failure for a single chunk. Non-fatal:
// the pipeline logs it and keeps going.
type EngineError struct {
	Provider string
	Err      error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s engine failed: %v", e.Provider, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// IsSkippable reports whether an error means "drop this chunk silently
// and count it completed" rather than a real failure.
func IsSkippable(err error) bool {
	var tooShort *AudioTooShortError
	return errors.As(err, &tooShort) || errors.Is(err, ErrModelNotLoaded)
}

// FatalProviderError marks conditions that should abort the session,
// such as a rejected API key.
type FatalProviderError struct {
	Err error
}

func (e *FatalProviderError) Error() string {
	return fmt.Sprintf("fatal provider error: %v", e.Err)
}

func (e *FatalProviderError) Unwrap() error { return e.Err }

func IsFatal(err error) bool {
	var fatal *FatalProviderError
	return errors.As(err, &fatal)
}
