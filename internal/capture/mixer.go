package capture

import "github.com/ponchovillalobos/maity-desktop/internal/audio"

// Mixer folds the per-device streams into the mixed playback track
// that gets saved with the meeting. With one device it is a relabeling
// pass-through; with two it sums the overlapping samples and holds the
// remainder until the other side catches up.
type Mixer struct {
	sampleRate int
	devices    []audio.DeviceType
	bufs       map[audio.DeviceType][]float32
	emitted    uint64
	nextID     uint64
}

func NewMixer(sampleRate int, devices ...audio.DeviceType) *Mixer {
	bufs := make(map[audio.DeviceType][]float32)
	for _, d := range devices {
		bufs[d] = nil
	}
	return &Mixer{
		sampleRate: sampleRate,
		devices:    devices,
		bufs:       bufs,
	}
}

// Add feeds one device chunk in and returns a mixed chunk when enough
// overlapping audio is available.
func (m *Mixer) Add(chunk audio.Chunk) (audio.Chunk, bool) {
	if len(m.devices) == 0 {
		return audio.Chunk{}, false
	}

	if len(m.devices) == 1 {
		out := chunk
		out.Device = audio.DeviceMixed
		out.ChunkID = m.nextID
		out.Timestamp = float64(m.emitted) / float64(m.sampleRate)
		m.nextID++
		m.emitted += uint64(len(chunk.Samples))
		return out, true
	}

	m.bufs[chunk.Device] = append(m.bufs[chunk.Device], chunk.Samples...)

	n := -1
	for _, buf := range m.bufs {
		if n < 0 || len(buf) < n {
			n = len(buf)
		}
	}
	if n <= 0 {
		return audio.Chunk{}, false
	}

	return m.mix(n), true
}

// Flush pads the shorter stream with silence and drains what is left.
func (m *Mixer) Flush() (audio.Chunk, bool) {
	if len(m.devices) < 2 {
		return audio.Chunk{}, false
	}

	n := 0
	for _, buf := range m.bufs {
		if len(buf) > n {
			n = len(buf)
		}
	}
	if n == 0 {
		return audio.Chunk{}, false
	}

	return m.mix(n), true
}

func (m *Mixer) mix(n int) audio.Chunk {
	out := make([]float32, n)
	for device, buf := range m.bufs {
		for i := 0; i < n && i < len(buf); i++ {
			out[i] += buf[i]
		}
		if len(buf) > n {
			m.bufs[device] = buf[n:]
		} else {
			m.bufs[device] = nil
		}
	}

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}

	chunk := audio.Chunk{
		Samples:    out,
		SampleRate: m.sampleRate,
		Timestamp:  float64(m.emitted) / float64(m.sampleRate),
		ChunkID:    m.nextID,
		Device:     audio.DeviceMixed,
	}
	m.nextID++
	m.emitted += uint64(n)
	return chunk
}
