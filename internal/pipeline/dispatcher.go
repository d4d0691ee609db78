package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/accumulator"
	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/events"
	"github.com/ponchovillalobos/maity-desktop/internal/hardware"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
	"github.com/ponchovillalobos/maity-desktop/internal/metrics"
	"github.com/ponchovillalobos/maity-desktop/internal/provider"
)

const (
	defaultQueueCapacity  = 2000
	defaultEnqueueTimeout = 5 * time.Second
	defaultTickInterval   = 200 * time.Millisecond

	verifyAttempts = 10
	verifyInterval = 100 * time.Millisecond

	engineSampleRate = 16000
)

// Engine is the subset of the provider engine the dispatcher needs.
type Engine interface {
	Name() string
	IsStreaming() bool
	IsModelLoaded() bool
	ConfidenceThreshold() float32
	QueueChunkInfo(device audio.DeviceType, start, end, duration float64)
	Transcribe(ctx context.Context, device audio.DeviceType, samples []float32, language string) (provider.Result, error)
	CloseStreams(ctx context.Context)
}

// MixedSink receives mixed-device audio for recording persistence.
type MixedSink interface {
	AppendMixed(chunk audio.Chunk)
}

// Config tunes the dispatcher. Zero values get defaults.
type Config struct {
	QueueCapacity  int
	EnqueueTimeout time.Duration
	TickInterval   time.Duration
	Language       string
	Settings       hardware.AccumulatorSettings
}

// Dispatcher owns the path from raw capture chunks to emitted
// transcripts: per-device accumulation, the bounded work queue, the
// single ordered worker, stream shutdown and final verification.
//
// One worker keeps emission ordered per session. Backpressure is
// bounded: a chunk that cannot enter the queue within the enqueue
// timeout is dropped and counted, never silently lost.
type Dispatcher struct {
	cfg    Config
	engine Engine
	pctx   *Context
	bus    *events.Bus
	mixed  MixedSink
	log    zerolog.Logger

	work chan audio.Chunk
	accs map[audio.DeviceType]*accumulator.Accumulator
	done chan struct{}
}

func NewDispatcher(cfg Config, engine Engine, pctx *Context, bus *events.Bus, mixed MixedSink) *Dispatcher {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = defaultEnqueueTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Settings.MinDuration == 0 {
		cfg.Settings = hardware.Detect().Tier.AccumulatorSettings()
	}

	return &Dispatcher{
		cfg:    cfg,
		engine: engine,
		pctx:   pctx,
		bus:    bus,
		mixed:  mixed,
		log:    logging.Component("dispatcher"),
		work:   make(chan audio.Chunk, cfg.QueueCapacity),
		accs:   make(map[audio.DeviceType]*accumulator.Accumulator),
		done:   make(chan struct{}),
	}
}

// Done is closed once Run has finished, summary included.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Run consumes capture chunks until in closes, then flushes the
// accumulators, drains the worker, closes streams and verifies the
// chunk accounting. Blocks until all of that is complete.
func (d *Dispatcher) Run(ctx context.Context, in <-chan audio.Chunk) {
	defer close(d.done)

	var workerWG sync.WaitGroup
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		for chunk := range d.work {
			d.process(ctx, chunk)
		}
	}()

	ticker := time.NewTicker(d.cfg.TickInterval)

loop:
	for {
		select {
		case chunk, ok := <-in:
			if !ok {
				break loop
			}
			d.handleChunk(ctx, chunk)

		case now := <-ticker.C:
			for device, acc := range d.accs {
				if merged, ok := acc.CheckTimeout(now); ok {
					metrics.Default.AccumulatorFlushes.WithLabelValues(string(device), "timeout").Inc()
					d.enqueue(merged)
				}
			}

		case <-ctx.Done():
			d.log.Warn().Msg("dispatch loop cancelled before input closed")
			break loop
		}
	}
	ticker.Stop()

	// Shutdown: everything still buffered goes to the queue so no
	// audio is dropped at the session tail.
	for device, acc := range d.accs {
		if merged, ok := acc.Flush(); ok {
			metrics.Default.AccumulatorFlushes.WithLabelValues(string(device), "shutdown").Inc()
			d.enqueue(merged)
		}
	}

	d.pctx.Tracker.MarkInputFinished()
	close(d.work)
	workerWG.Wait()

	// Streams may still owe results for chunks already sent. Closing
	// waits for the server to flush them.
	d.engine.CloseStreams(ctx)

	d.verify(ctx)
}

func (d *Dispatcher) handleChunk(ctx context.Context, chunk audio.Chunk) {
	if chunk.Device == audio.DeviceMixed {
		if d.mixed != nil {
			d.mixed.AppendMixed(chunk)
		}
		return
	}

	acc, ok := d.accs[chunk.Device]
	if !ok {
		acc = accumulator.New(chunk.Device, chunk.SampleRate, d.cfg.Settings)
		d.accs[chunk.Device] = acc
	}

	if merged, ok := acc.Add(chunk); ok {
		metrics.Default.AccumulatorFlushes.WithLabelValues(string(chunk.Device), "size").Inc()
		d.enqueue(merged)
	}
}

// enqueue counts the chunk as queued, then either hands it to the
// worker or, after the timeout, counts it dropped. Exactly one of the
// two happens per chunk.
func (d *Dispatcher) enqueue(chunk audio.Chunk) {
	d.pctx.Tracker.AddQueued()
	metrics.Default.ChunksQueued.Inc()

	select {
	case d.work <- chunk:
	case <-time.After(d.cfg.EnqueueTimeout):
		d.pctx.Tracker.AddDropped()
		metrics.Default.ChunksDropped.Inc()
		d.log.Warn().
			Str("device", string(chunk.Device)).
			Uint64("chunk_id", chunk.ChunkID).
			Float64("duration", chunk.Duration()).
			Msg("queue full, chunk dropped")
	}
}

func (d *Dispatcher) process(ctx context.Context, chunk audio.Chunk) {
	tracker := d.pctx.Tracker
	defer func() {
		tracker.AddCompleted()
		metrics.Default.ChunksCompleted.Inc()
	}()

	if !d.engine.IsModelLoaded() {
		metrics.Default.TranscriptsSkipped.WithLabelValues("model_not_loaded").Inc()
		return
	}

	samples := chunk.Samples
	if chunk.SampleRate != engineSampleRate {
		samples = audio.Resample(samples, chunk.SampleRate, engineSampleRate)
	}

	start := chunk.Timestamp
	duration := chunk.Duration()

	if d.engine.IsStreaming() {
		d.engine.QueueChunkInfo(chunk.Device, start, start+duration, duration)
	}

	res, err := d.engine.Transcribe(ctx, chunk.Device, samples, d.cfg.Language)
	if err != nil {
		if provider.IsSkippable(err) {
			d.log.Debug().Err(err).Uint64("chunk_id", chunk.ChunkID).Msg("chunk skipped")
			return
		}
		d.log.Warn().Err(err).Uint64("chunk_id", chunk.ChunkID).Str("device", string(chunk.Device)).Msg("transcription failed")
		d.bus.Emit(events.Event{Type: events.TypeTranscriptionWarning, Payload: err.Error()})
		return
	}

	// Streaming results arrive through the reader hooks, not here.
	if !d.engine.IsStreaming() {
		d.emitResult(chunk, start, duration, res)
	}
}

func (d *Dispatcher) emitResult(chunk audio.Chunk, start, duration float64, res provider.Result) {
	text := strings.TrimSpace(res.Text)
	if text == "" {
		metrics.Default.TranscriptsSkipped.WithLabelValues("empty").Inc()
		return
	}
	if res.HasConfidence && res.Confidence < d.engine.ConfidenceThreshold() {
		metrics.Default.TranscriptsSkipped.WithLabelValues("low_confidence").Inc()
		return
	}

	if d.pctx.MarkSpeechDetected() {
		d.bus.Emit(events.Event{Type: events.TypeSpeechDetected})
	}

	update := events.TranscriptUpdate{
		Text:           text,
		Timestamp:      time.Now().Format("15:04:05"),
		Source:         string(chunk.Device),
		SequenceID:     d.pctx.NextSequence(),
		IsPartial:      res.IsPartial,
		Confidence:     res.Confidence,
		AudioStartTime: start,
		AudioEndTime:   start + duration,
		Duration:       duration,
		SourceType:     chunk.Device.SourceType(),
	}
	d.bus.Emit(events.Event{Type: events.TypeTranscriptUpdate, Payload: update})
	metrics.Default.TranscriptsEmitted.WithLabelValues(string(chunk.Device), "final").Inc()
}

// verify polls until the chunk accounting reconciles and always emits
// the session summary, plus a loss event when chunks went missing.
func (d *Dispatcher) verify(ctx context.Context) {
	summary, reconciled := d.pctx.Tracker.Verify(ctx, verifyAttempts, verifyInterval)

	if !reconciled || summary.ChunksDropped > 0 {
		d.log.Warn().
			Uint64("queued", summary.ChunksQueued).
			Uint64("completed", summary.ChunksCompleted).
			Uint64("dropped", summary.ChunksDropped).
			Float64("loss_pct", summary.LossPercentage).
			Msg("chunk loss detected")
		d.bus.Emit(events.Event{Type: events.TypeChunkLossDetected, Payload: summary})
	} else {
		d.log.Info().
			Uint64("queued", summary.ChunksQueued).
			Uint64("completed", summary.ChunksCompleted).
			Msg("all chunks accounted for")
	}

	d.bus.Emit(events.Event{Type: events.TypeTranscriptionSummary, Payload: summary})
}
