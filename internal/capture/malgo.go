package capture

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

// Backend wraps the miniaudio context shared by every device source.
type Backend struct {
	ctx *malgo.AllocatedContext
	log zerolog.Logger
}

func NewBackend() (*Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &Backend{ctx: ctx, log: logging.Component("capture")}, nil
}

func (b *Backend) Close() error {
	if b.ctx == nil {
		return nil
	}
	if err := b.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	b.ctx.Free()
	b.ctx = nil
	return nil
}

// ListCaptureDevices returns the names of the available capture devices.
func (b *Backend) ListCaptureDevices() ([]string, error) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// ResolveDevice finds the capture device whose name matches preferred,
// case-insensitive substring match. Returns found=false when preferred
// is empty or nothing matches; callers then use the system default.
func (b *Backend) ResolveDevice(preferred string) (malgo.DeviceInfo, bool, error) {
	if preferred == "" {
		return malgo.DeviceInfo{}, false, nil
	}

	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, false, fmt.Errorf("enumerating capture devices: %w", err)
	}

	want := strings.ToLower(preferred)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			return info, true, nil
		}
	}

	b.log.Warn().Str("preferred", preferred).Msg("preferred device not found, using default")
	return malgo.DeviceInfo{}, false, nil
}

// findMonitorDevice looks for a loopback/monitor capture device for
// system audio, the PulseAudio/PipeWire convention on Linux.
func (b *Backend) findMonitorDevice() (malgo.DeviceInfo, bool) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, false
	}
	for _, info := range infos {
		name := strings.ToLower(info.Name())
		if strings.Contains(name, "monitor") || strings.Contains(name, "loopback") {
			return info, true
		}
	}
	return malgo.DeviceInfo{}, false
}

// DeviceSource captures one hardware device through miniaudio and
// emits fixed-period chunks.
type DeviceSource struct {
	backend    *Backend
	deviceType audio.DeviceType
	malgoType  malgo.DeviceType
	info       *malgo.DeviceInfo
	sampleRate int
	channels   int
	log        zerolog.Logger

	paused atomic.Bool

	mu      sync.Mutex
	device  *malgo.Device
	emit    func(audio.Chunk)
	samples uint64
	nextID  uint64
}

// NewMicSource captures the microphone. A non-empty preferred name is
// resolved against the device list; failure to match falls back to the
// default input.
func (b *Backend) NewMicSource(preferred string, sampleRate, channels int) (*DeviceSource, error) {
	info, found, err := b.ResolveDevice(preferred)
	if err != nil {
		return nil, err
	}
	src := &DeviceSource{
		backend:    b,
		deviceType: audio.DeviceMicrophone,
		malgoType:  malgo.Capture,
		sampleRate: sampleRate,
		channels:   channels,
		log:        b.log.With().Str("device", "microphone").Logger(),
	}
	if found {
		src.info = &info
	}
	return src, nil
}

// NewSystemSource captures what the machine is playing. Prefers a
// native loopback device, falling back to a monitor capture device.
// Returns an error when the platform offers neither; callers degrade
// to microphone-only capture.
func (b *Backend) NewSystemSource(preferred string, sampleRate, channels int) (*DeviceSource, error) {
	src := &DeviceSource{
		backend:    b,
		deviceType: audio.DeviceSystem,
		malgoType:  malgo.Loopback,
		sampleRate: sampleRate,
		channels:   channels,
		log:        b.log.With().Str("device", "system").Logger(),
	}

	if preferred != "" {
		info, found, err := b.ResolveDevice(preferred)
		if err != nil {
			return nil, err
		}
		if found {
			src.info = &info
			src.malgoType = malgo.Capture
			return src, nil
		}
	}

	if info, ok := b.findMonitorDevice(); ok {
		src.info = &info
		src.malgoType = malgo.Capture
	}
	return src, nil
}

func (s *DeviceSource) DeviceType() audio.DeviceType { return s.deviceType }

func (s *DeviceSource) Start(emit func(audio.Chunk)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return fmt.Errorf("source already started")
	}
	s.emit = emit

	deviceCfg := malgo.DefaultDeviceConfig(s.malgoType)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = uint32(s.channels)
	deviceCfg.SampleRate = uint32(s.sampleRate)
	deviceCfg.PeriodSizeInMilliseconds = 100
	if s.info != nil {
		deviceCfg.Capture.DeviceID = s.info.ID.Pointer()
	}

	device, err := malgo.InitDevice(s.backend.ctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		return fmt.Errorf("initializing %s device: %w", s.deviceType, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("starting %s device: %w", s.deviceType, err)
	}

	s.device = device
	return nil
}

func (s *DeviceSource) Pause()  { s.paused.Store(true) }
func (s *DeviceSource) Resume() { s.paused.Store(false) }

// Stop tears the device down. Uninit blocks until the data callback
// has returned, so no emit happens after Stop.
func (s *DeviceSource) Stop() error {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	return nil
}

func (s *DeviceSource) onData(_, input []byte, frameCount uint32) {
	if s.paused.Load() {
		return
	}

	samples := audio.FromF32Bytes(input)
	if s.channels == 2 {
		samples = audio.DownmixStereo(samples)
	}
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	emit := s.emit
	timestamp := float64(s.samples) / float64(s.sampleRate)
	id := s.nextID
	s.nextID++
	s.samples += uint64(len(samples))
	s.mu.Unlock()

	if emit == nil {
		return
	}

	emit(audio.Chunk{
		Samples:    samples,
		SampleRate: s.sampleRate,
		Timestamp:  timestamp,
		ChunkID:    id,
		Device:     s.deviceType,
	})
}
