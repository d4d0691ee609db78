package audio

import "fmt"

// DeviceType identifies which capture path produced a chunk.
type DeviceType string

const (
	DeviceMicrophone DeviceType = "microphone"
	DeviceSystem     DeviceType = "system"
	// DeviceMixed carries the pre-mixed playback signal. It is persisted
	// for the meeting recording but never transcribed.
	DeviceMixed DeviceType = "mixed"
)

// SourceType maps a device to the speaker label attached to transcript
// segments. Mixed audio has no speaker and returns "".
func (d DeviceType) SourceType() string {
	switch d {
	case DeviceMicrophone:
		return "user"
	case DeviceSystem:
		return "interlocutor"
	default:
		return ""
	}
}

func (d DeviceType) String() string { return string(d) }

// Chunk is a contiguous run of mono float32 samples from one device.
// Timestamp is seconds since the recording session started.
type Chunk struct {
	Samples    []float32
	SampleRate int
	Timestamp  float64
	ChunkID    uint64
	Device     DeviceType
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

func (c Chunk) String() string {
	return fmt.Sprintf("%s chunk %d (%.2fs @ %.2fs)", c.Device, c.ChunkID, c.Duration(), c.Timestamp)
}
