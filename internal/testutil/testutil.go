// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// SineWave generates a mono sine tone.
func SineWave(freq float64, seconds float64, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

// Silence generates a run of zero samples.
func Silence(seconds float64, sampleRate int) []float32 {
	return make([]float32, int(seconds*float64(sampleRate)))
}

// WriteTempConfig writes a TOML config into a temp dir and returns its
// path.
func WriteTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
