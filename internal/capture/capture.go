// Package capture pulls audio from the host devices and fans it into
// the pipeline as a single chunk stream.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

// Source produces chunks for one device. Implementations must stop
// calling emit before Stop returns.
type Source interface {
	DeviceType() audio.DeviceType
	Start(emit func(audio.Chunk)) error
	Pause()
	Resume()
	Stop() error
}

// Manager runs the configured sources, mixes their output for the
// recording track and exposes one merged channel. The channel closes
// only after every source has stopped, so a closed channel means no
// chunk is in flight.
type Manager struct {
	sources []Source
	out     chan audio.Chunk
	mixer   *Mixer
	log     zerolog.Logger

	mu          sync.Mutex
	mixMu       sync.Mutex
	started     bool
	stopped     bool
	paused      bool
	pausedAt    time.Time
	totalPaused time.Duration
}

func NewManager(bufferSize int, sampleRate int, sources ...Source) *Manager {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	var mixDevices []audio.DeviceType
	for _, s := range sources {
		mixDevices = append(mixDevices, s.DeviceType())
	}

	return &Manager{
		sources: sources,
		out:     make(chan audio.Chunk, bufferSize),
		mixer:   NewMixer(sampleRate, mixDevices...),
		log:     logging.Component("capture"),
	}
}

// Start begins capture on every source. Fails on the first source
// error; already started sources are stopped again.
func (m *Manager) Start() (<-chan audio.Chunk, error) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil, fmt.Errorf("capture already started")
	}
	m.started = true
	m.mu.Unlock()

	for i, src := range m.sources {
		if err := src.Start(m.emit); err != nil {
			for _, prev := range m.sources[:i] {
				prev.Stop()
			}
			return nil, fmt.Errorf("start %s capture: %w", src.DeviceType(), err)
		}
		m.log.Info().Str("device", string(src.DeviceType())).Msg("capture started")
	}

	return m.out, nil
}

// emit forwards a chunk into the merged channel. It must never block a
// device callback: when the channel is full the chunk is dropped here
// and the loss shows up in the session summary as a gap, not a hang.
func (m *Manager) emit(chunk audio.Chunk) {
	m.mu.Lock()
	if m.stopped || m.paused {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.send(chunk)

	if chunk.Device != audio.DeviceMixed {
		m.mixMu.Lock()
		mixed, ok := m.mixer.Add(chunk)
		m.mixMu.Unlock()
		if ok {
			m.send(mixed)
		}
	}
}

func (m *Manager) send(chunk audio.Chunk) {
	select {
	case m.out <- chunk:
	default:
		m.log.Warn().Str("device", string(chunk.Device)).Msg("capture channel full, dropping chunk")
	}
}

// Pause suspends delivery. Sources keep running but their audio is
// discarded and the recording timeline does not advance.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused || m.stopped {
		return
	}
	m.paused = true
	m.pausedAt = time.Now()
	for _, src := range m.sources {
		src.Pause()
	}
	m.log.Info().Msg("capture paused")
}

// Resume restarts delivery after Pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused || m.stopped {
		return
	}
	m.paused = false
	m.totalPaused += time.Since(m.pausedAt)
	for _, src := range m.sources {
		src.Resume()
	}
	m.log.Info().Dur("total_paused", m.totalPaused).Msg("capture resumed")
}

// TotalPaused returns the accumulated pause time of the session.
func (m *Manager) TotalPaused() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return m.totalPaused + time.Since(m.pausedAt)
	}
	return m.totalPaused
}

// Stop halts every source, flushes the mixer tail and closes the
// merged channel. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	for _, src := range m.sources {
		if err := src.Stop(); err != nil {
			m.log.Warn().Err(err).Str("device", string(src.DeviceType())).Msg("source stop failed")
		}
	}

	// Sources are quiet now; mark stopped so a racing emit cannot
	// slip past, then drain the mixer remainder directly.
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.mixMu.Lock()
	tail, ok := m.mixer.Flush()
	m.mixMu.Unlock()
	if ok {
		m.send(tail)
	}

	close(m.out)
	m.log.Info().Msg("capture stopped")
}
