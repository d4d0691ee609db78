// Package accumulator merges small capture chunks into engine-sized
// ones before transcription.
package accumulator

import (
	"time"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/hardware"
)

// timeoutFloor is the minimum buffered audio a timeout flush will emit.
// Anything shorter produces garbage transcripts and is left to grow.
const timeoutFloor = 500 * time.Millisecond

// Accumulator buffers audio for one device. It is owned by the
// dispatcher loop and is not safe for concurrent use.
type Accumulator struct {
	device     audio.DeviceType
	sampleRate int
	settings   hardware.AccumulatorSettings

	samples     []float32
	startTime   float64
	nextChunkID uint64
	lastAdd     time.Time
}

func New(device audio.DeviceType, sampleRate int, settings hardware.AccumulatorSettings) *Accumulator {
	return &Accumulator{
		device:     device,
		sampleRate: sampleRate,
		settings:   settings,
	}
}

// Add buffers a chunk and returns a merged chunk when a duration
// threshold is reached. Mixed-device audio is never accumulated and is
// returned as-is.
func (a *Accumulator) Add(chunk audio.Chunk) (audio.Chunk, bool) {
	if chunk.Device == audio.DeviceMixed {
		return chunk, true
	}

	if len(a.samples) == 0 {
		a.startTime = chunk.Timestamp
	}
	a.samples = append(a.samples, chunk.Samples...)
	a.lastAdd = time.Now()

	if a.BufferedDuration() >= a.settings.MinDuration.Seconds() {
		return a.drain(), true
	}
	return audio.Chunk{}, false
}

// CheckTimeout flushes the buffer when no audio has arrived for the
// flush timeout and at least the floor's worth is buffered. Called
// periodically by the dispatcher tick.
func (a *Accumulator) CheckTimeout(now time.Time) (audio.Chunk, bool) {
	if len(a.samples) == 0 {
		return audio.Chunk{}, false
	}
	if now.Sub(a.lastAdd) < a.settings.FlushTimeout {
		return audio.Chunk{}, false
	}
	if a.BufferedDuration() < timeoutFloor.Seconds() {
		return audio.Chunk{}, false
	}
	return a.drain(), true
}

// Flush drains whatever is buffered regardless of thresholds. Used at
// session shutdown so no audio is lost.
func (a *Accumulator) Flush() (audio.Chunk, bool) {
	if len(a.samples) == 0 {
		return audio.Chunk{}, false
	}
	return a.drain(), true
}

// BufferedDuration returns the buffered audio length in seconds.
func (a *Accumulator) BufferedDuration() float64 {
	if a.sampleRate == 0 {
		return 0
	}
	return float64(len(a.samples)) / float64(a.sampleRate)
}

func (a *Accumulator) drain() audio.Chunk {
	out := audio.Chunk{
		Samples:    a.samples,
		SampleRate: a.sampleRate,
		Timestamp:  a.startTime,
		ChunkID:    a.nextChunkID,
		Device:     a.device,
	}
	a.nextChunkID++
	a.samples = nil
	return out
}
