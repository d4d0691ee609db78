// Package recording coordinates the life of one meeting session: it
// wires capture, the transcription pipeline, the transcript history and
// the saver together, and runs the staged stop protocol.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/capture"
	"github.com/ponchovillalobos/maity-desktop/internal/config"
	"github.com/ponchovillalobos/maity-desktop/internal/events"
	"github.com/ponchovillalobos/maity-desktop/internal/hardware"
	"github.com/ponchovillalobos/maity-desktop/internal/history"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
	"github.com/ponchovillalobos/maity-desktop/internal/metrics"
	"github.com/ponchovillalobos/maity-desktop/internal/pipeline"
	"github.com/ponchovillalobos/maity-desktop/internal/provider"
	"github.com/ponchovillalobos/maity-desktop/internal/saver"
)

// State is the lifecycle position of the session coordinator.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
)

var (
	ErrAlreadyRecording = errors.New("a recording session is already active")
	ErrNotRecording     = errors.New("no recording session is active")
)

// Engine is the transcription backend a session runs against.
type Engine interface {
	pipeline.Engine
	ValidateReady() error
	Unload(ctx context.Context)
}

// Lifecycle owns at most one session at a time and serializes all
// state transitions.
type Lifecycle struct {
	bus *events.Bus
	log zerolog.Logger

	// Seams for tests. Defaults build the real engine and devices.
	newEngine  func(cfg *config.Config, hooks provider.StreamHooks) (Engine, error)
	newSources func(cfg *config.Config) ([]capture.Source, func(), error)

	mu      sync.Mutex
	state   State
	session *session
}

type session struct {
	cfg        config.Config
	meeting    string
	startedAt  time.Time
	cancel     context.CancelFunc
	manager    *capture.Manager
	dispatcher *pipeline.Dispatcher
	engine     Engine
	hist       *history.History
	sv         *saver.Saver
	subID      int
	cleanup    func()
}

func NewLifecycle(bus *events.Bus) *Lifecycle {
	l := &Lifecycle{
		bus:   bus,
		log:   logging.Component("recording"),
		state: StateIdle,
	}
	l.newEngine = func(cfg *config.Config, hooks provider.StreamHooks) (Engine, error) {
		return provider.Resolve(cfg, hooks)
	}
	l.newSources = defaultSources
	return l
}

// State reports the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Meeting returns the active session's meeting name, if any.
func (l *Lifecycle) Meeting() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return "", false
	}
	return l.session.meeting, true
}

// Transcript returns the segments accumulated so far for the active
// session, ordered by sequence. Nil when no session is running.
func (l *Lifecycle) Transcript() []history.Segment {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return nil
	}
	return l.session.hist.Segments()
}

// Start brings up a full session: transcription engine, capture
// devices, dispatcher and history. Fails without side effects when the
// engine is not ready or the microphone cannot be opened.
func (l *Lifecycle) Start(ctx context.Context, cfg *config.Config, meeting string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return ErrAlreadyRecording
	}

	if meeting == "" {
		meeting = time.Now().Format("Meeting 2006-01-02_15-04-05")
	}

	pctx := pipeline.NewContext()
	hooks := provider.StreamHooks{
		NextSequence: pctx.NextSequence,
		Emit: func(u events.TranscriptUpdate) {
			l.bus.Emit(events.Event{Type: events.TypeTranscriptUpdate, Payload: u})
		},
		OnSpeech: func() {
			if pctx.MarkSpeechDetected() {
				l.bus.Emit(events.Event{Type: events.TypeSpeechDetected})
			}
		},
	}

	engine, err := l.newEngine(cfg, hooks)
	if err != nil {
		return fmt.Errorf("resolve transcription engine: %w", err)
	}
	if err := engine.ValidateReady(); err != nil {
		return err
	}

	sources, cleanup, err := l.newSources(cfg)
	if err != nil {
		return err
	}

	meetingDir, err := cfg.MeetingDir()
	if err != nil {
		cleanup()
		return fmt.Errorf("resolve meeting dir: %w", err)
	}
	sv := saver.New(meetingDir, meeting, cfg.Recording.SampleRate)
	hist := history.New()
	subID := l.bus.Subscribe(func(ev events.Event) {
		if ev.Type != events.TypeTranscriptUpdate {
			return
		}
		if u, ok := ev.Payload.(events.TranscriptUpdate); ok {
			hist.Add(u)
		}
	})

	manager := capture.NewManager(cfg.Recording.ChannelBufferSize, cfg.Recording.SampleRate, sources...)
	chunks, err := manager.Start()
	if err != nil {
		l.bus.Unsubscribe(subID)
		cleanup()
		return fmt.Errorf("start capture: %w", err)
	}

	dispatcher := pipeline.NewDispatcher(pipeline.Config{
		QueueCapacity:  cfg.Pipeline.QueueCapacity,
		EnqueueTimeout: cfg.Pipeline.EnqueueTimeout,
		Language:       cfg.Transcription.Language,
		Settings:       accumulatorSettings(cfg),
	}, engine, pctx, l.bus, sv)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go dispatcher.Run(runCtx, chunks)

	l.session = &session{
		cfg:        *cfg,
		meeting:    meeting,
		startedAt:  time.Now(),
		cancel:     cancel,
		manager:    manager,
		dispatcher: dispatcher,
		engine:     engine,
		hist:       hist,
		sv:         sv,
		subID:      subID,
		cleanup:    cleanup,
	}
	l.state = StateRecording

	metrics.Default.SessionsStarted.Inc()
	l.bus.Emit(events.Event{
		Type:    events.TypeRecordingStarted,
		Payload: events.SessionInfo{MeetingName: meeting},
	})
	l.log.Info().
		Str("meeting", meeting).
		Str("provider", engine.Name()).
		Int("sources", len(sources)).
		Msg("session started")
	return nil
}

// Pause suspends capture. Audio arriving while paused is discarded and
// the timeline does not advance.
func (l *Lifecycle) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateRecording {
		return ErrNotRecording
	}
	l.session.manager.Pause()
	l.state = StatePaused
	l.bus.Emit(events.Event{Type: events.TypeRecordingPaused})
	l.log.Info().Msg("session paused")
	return nil
}

// Resume continues a paused session.
func (l *Lifecycle) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StatePaused {
		return ErrNotRecording
	}
	l.session.manager.Resume()
	l.state = StateRecording
	l.bus.Emit(events.Event{Type: events.TypeRecordingResumed})
	l.log.Info().Msg("session resumed")
	return nil
}

// Stop runs the staged shutdown protocol: stop capture, drain the
// pipeline, unload the model, save the meeting folder. Idempotent.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateIdle || l.state == StateStopping {
		l.mu.Unlock()
		return nil
	}
	s := l.session
	l.state = StateStopping
	l.mu.Unlock()

	l.emitStage(events.StageStoppingAudio, "stopping audio capture", 20)
	s.manager.Stop()

	l.emitStage(events.StageProcessingTranscripts, "processing remaining transcripts", 40)
	drain := s.cfg.Pipeline.DrainTimeout
	if drain <= 0 {
		drain = 10 * time.Minute
	}
	select {
	case <-s.dispatcher.Done():
	case <-time.After(drain):
		l.log.Warn().Dur("timeout", drain).Msg("pipeline drain timed out, forcing shutdown")
		s.cancel()
		<-s.dispatcher.Done()
	}
	s.cancel()

	l.emitStage(events.StageUnloadingModel, "unloading transcription model", 70)
	s.engine.Unload(ctx)

	l.emitStage(events.StageFinalizing, "saving meeting folder", 90)
	// Make sure the history subscriber has seen every transcript
	// emitted by the pipeline before the segments are snapshotted.
	l.bus.Flush()
	var folder string
	var saveErr error
	if s.cfg.Recording.AutoSave {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saver.SaveTimeout)
		folder, saveErr = s.sv.Save(saveCtx, s.hist.Segments())
		cancel()
		if saveErr != nil {
			l.log.Error().Err(saveErr).Msg("failed to save session")
			l.bus.Emit(events.Event{Type: events.TypeTranscriptionError, Payload: saveErr.Error()})
		}
	}

	l.bus.Unsubscribe(s.subID)
	s.cleanup()

	paused := s.manager.TotalPaused()
	duration := time.Since(s.startedAt) - paused
	metrics.Default.SessionsFinished.Inc()
	metrics.Default.SessionDuration.Observe(duration.Seconds())

	l.mu.Lock()
	l.session = nil
	l.state = StateIdle
	l.mu.Unlock()

	l.bus.Emit(events.Event{
		Type:    events.TypeRecordingStopped,
		Payload: events.SessionInfo{
			MeetingName:   s.meeting,
			Folder:        folder,
			Duration:      duration.Seconds(),
			PausedSeconds: paused.Seconds(),
		},
	})
	l.emitStage(events.StageComplete, "shutdown complete", 100)
	l.log.Info().
		Str("meeting", s.meeting).
		Dur("duration", duration).
		Dur("paused", paused).
		Int("segments", s.hist.Len()).
		Msg("session stopped")
	return saveErr
}

func (l *Lifecycle) emitStage(stage events.ShutdownStage, msg string, progress int) {
	l.bus.Emit(events.Event{
		Type:    events.TypeShutdownProgress,
		Payload: events.ShutdownProgress{Stage: stage, Message: msg, Progress: progress},
	})
}

// accumulatorSettings resolves chunking thresholds from config
// overrides, falling back to the detected hardware tier.
func accumulatorSettings(cfg *config.Config) hardware.AccumulatorSettings {
	settings := hardware.Detect().Tier.AccumulatorSettings()
	if tier, ok := hardware.ParseTier(cfg.Accumulator.Tier); ok {
		settings = tier.AccumulatorSettings()
	}
	if cfg.Accumulator.MinDuration > 0 {
		settings.MinDuration = cfg.Accumulator.MinDuration
	}
	if cfg.Accumulator.MaxDuration > 0 {
		settings.MaxDuration = cfg.Accumulator.MaxDuration
	}
	if cfg.Accumulator.FlushTimeout > 0 {
		settings.FlushTimeout = cfg.Accumulator.FlushTimeout
	}
	return settings
}

// defaultSources opens the configured capture devices. A missing
// microphone fails the session; a missing system device degrades to
// microphone-only capture.
func defaultSources(cfg *config.Config) ([]capture.Source, func(), error) {
	backend, err := capture.NewBackend()
	if err != nil {
		return nil, nil, fmt.Errorf("init audio backend: %w", err)
	}
	cleanup := func() {
		if err := backend.Close(); err != nil {
			log := logging.Component("recording")
			log.Warn().Err(err).Msg("failed to close audio backend")
		}
	}

	mic, err := backend.NewMicSource(cfg.Recording.MicDevice, cfg.Recording.SampleRate, cfg.Recording.Channels)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open microphone: %w", err)
	}
	sources := []capture.Source{mic}

	if cfg.Recording.CaptureSystem {
		sys, err := backend.NewSystemSource(cfg.Recording.SystemDevice, cfg.Recording.SampleRate, cfg.Recording.Channels)
		if err != nil {
			log := logging.Component("recording")
			log.Warn().Err(err).Msg("system audio unavailable, continuing microphone-only")
		} else {
			sources = append(sources, sys)
		}
	}
	return sources, cleanup, nil
}
