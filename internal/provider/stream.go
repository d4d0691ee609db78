package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/audio"
	"github.com/ponchovillalobos/maity-desktop/internal/events"
	"github.com/ponchovillalobos/maity-desktop/internal/language"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
	"github.com/ponchovillalobos/maity-desktop/internal/metrics"
)

const deepgramBaseURL = "wss://api.deepgram.com/v1/listen"

// StreamState tracks the websocket lifecycle of a streaming connection.
type StreamState int32

const (
	StreamDisconnected StreamState = iota
	StreamConnecting
	StreamConnected
)

func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// PendingChunkInfo carries the timing of a sent chunk until the server
// returns its transcript. FIFO order matches server result order.
type PendingChunkInfo struct {
	AudioStartTime float64
	AudioEndTime   float64
	Duration       float64
}

// StreamConfig configures one persistent streaming connection.
type StreamConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Device   audio.DeviceType

	KeepAliveInterval  time.Duration
	MaxConnectAttempts int
	ConnectRetryDelay  time.Duration
	CloseTimeout       time.Duration
}

func (c *StreamConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = deepgramBaseURL
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = 5 * time.Second
	}
	if c.MaxConnectAttempts == 0 {
		c.MaxConnectAttempts = 3
	}
	if c.ConnectRetryDelay == 0 {
		c.ConnectRetryDelay = time.Second
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = 10 * time.Second
	}
}

// StreamHooks connect a streaming reader to the rest of the pipeline.
// NextSequence assigns global transcript ordering at emission time.
type StreamHooks struct {
	NextSequence func() uint64
	Emit         func(events.TranscriptUpdate)
	OnSpeech     func()
}

// StreamingConnection holds one websocket to a real-time transcription
// backend. Results arrive asynchronously on the reader goroutine and
// are emitted through the hooks; Transcribe only pushes audio.
//
// Every (re)connect bumps a generation counter. Readers remember the
// generation they were spawned with and discard anything they see once
// it goes stale, so a lingering reader from a dead socket can never
// emit duplicate transcripts.
type StreamingConnection struct {
	cfg   StreamConfig
	hooks StreamHooks
	log   zerolog.Logger

	generation atomic.Uint64

	mu         sync.Mutex
	conn       *websocket.Conn
	state      StreamState
	pending    []PendingChunkInfo
	interim    string
	readerDone chan struct{}

	keepAliveOnce   sync.Once
	keepAliveCancel context.CancelFunc
}

type dgOutgoing struct {
	Type string `json:"type"`
}

type dgResponse struct {
	Type        string     `json:"type"`
	Channel     *dgChannel `json:"channel,omitempty"`
	IsFinal     bool       `json:"is_final,omitempty"`
	SpeechFinal bool       `json:"speech_final,omitempty"`
	Error       *dgError   `json:"error,omitempty"`
}

type dgChannel struct {
	Alternatives []dgAlternative `json:"alternatives,omitempty"`
}

type dgAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
}

type dgError struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

func NewStreamingConnection(cfg StreamConfig, hooks StreamHooks) *StreamingConnection {
	cfg.applyDefaults()
	return &StreamingConnection{
		cfg:   cfg,
		hooks: hooks,
		log:   logging.Component("stream").With().Str("device", string(cfg.Device)).Logger(),
	}
}

func (c *StreamingConnection) Name() string { return "deepgram" }

func (c *StreamingConnection) IsModelLoaded() bool { return c.cfg.APIKey != "" }

func (c *StreamingConnection) CurrentModel() (string, bool) {
	if c.cfg.APIKey == "" {
		return "", false
	}
	return c.cfg.Model, true
}

func (c *StreamingConnection) ConfidenceThreshold() float32 { return cloudConfidenceThreshold }

// State returns the current connection state.
func (c *StreamingConnection) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// QueueChunkInfo records the timing of the chunk about to be sent.
// Must be called once per Transcribe call, before it.
func (c *StreamingConnection) QueueChunkInfo(start, end, duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, PendingChunkInfo{AudioStartTime: start, AudioEndTime: end, Duration: duration})
}

// PendingCount returns how many sent chunks still await results.
func (c *StreamingConnection) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Transcribe pushes a chunk into the stream. The transcript arrives
// later via the reader; the returned Result is always empty.
func (c *StreamingConnection) Transcribe(ctx context.Context, samples []float32, _ string) (Result, error) {
	if len(samples) < MinSamples {
		return Result{}, &AudioTooShortError{Samples: len(samples), Minimum: MinSamples}
	}
	if c.cfg.APIKey == "" {
		return Result{}, ErrModelNotLoaded
	}

	if err := c.ensureConnected(ctx); err != nil {
		return Result{}, err
	}

	data := audio.ToPCM16(samples)
	if err := c.send(data); err != nil {
		metrics.Default.StreamSendErrors.WithLabelValues(string(c.cfg.Device)).Inc()
		c.log.Warn().Err(err).Msg("send failed, reconnecting")

		// The tail pending entry is this chunk's. Hold on to it across
		// the teardown so the retried send keeps its timings; older
		// entries die with the socket.
		c.mu.Lock()
		var mine *PendingChunkInfo
		if n := len(c.pending); n > 0 {
			info := c.pending[n-1]
			mine = &info
		}
		c.mu.Unlock()

		c.teardown()
		if rerr := c.ensureConnected(ctx); rerr != nil {
			return Result{}, rerr
		}
		if mine != nil {
			c.QueueChunkInfo(mine.AudioStartTime, mine.AudioEndTime, mine.Duration)
		}
		if rerr := c.send(data); rerr != nil {
			c.teardown()
			return Result{}, &EngineError{Provider: c.Name(), Err: fmt.Errorf("send after reconnect: %w", rerr)}
		}
	}

	return Result{}, nil
}

func (c *StreamingConnection) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("no connection")
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// ensureConnected dials if the connection is down. Attempts are spaced
// by the retry delay; all failing turns into an EngineError.
func (c *StreamingConnection) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StreamConnected && c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.state = StreamConnecting
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxConnectAttempts; attempt++ {
		if attempt > 1 {
			metrics.Default.StreamReconnects.WithLabelValues(string(c.cfg.Device)).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ConnectRetryDelay):
			}
		}

		conn, err := c.dial(ctx)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Int("max", c.cfg.MaxConnectAttempts).Msg("connect failed")
			continue
		}

		gen := c.generation.Add(1)
		done := make(chan struct{})

		c.mu.Lock()
		c.conn = conn
		c.state = StreamConnected
		c.readerDone = done
		c.mu.Unlock()

		go c.readLoop(conn, gen, done)
		c.startKeepAlive()

		c.log.Info().Uint64("generation", gen).Str("model", c.cfg.Model).Msg("stream connected")
		return nil
	}

	c.mu.Lock()
	c.state = StreamDisconnected
	c.mu.Unlock()
	return &EngineError{Provider: c.Name(), Err: fmt.Errorf("connect failed after %d attempts: %w", c.cfg.MaxConnectAttempts, lastErr)}
}

func (c *StreamingConnection) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := c.buildURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, &FatalProviderError{Err: fmt.Errorf("authentication rejected (status %d)", resp.StatusCode)}
			}
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (c *StreamingConnection) buildURL() (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("model", c.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(engineSampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("vad_events", "true")
	q.Set("utterance_end_ms", "1000")
	if c.cfg.Language != "" {
		q.Set("language", language.ToProviderFormat(c.cfg.Language, "deepgram"))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *StreamingConnection) startKeepAlive() {
	c.keepAliveOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.keepAliveCancel = cancel
		c.mu.Unlock()
		go c.keepAliveLoop(ctx)
	})
}

// keepAliveLoop pings the server so it does not close an idle socket
// during silence.
func (c *StreamingConnection) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			connected := c.state == StreamConnected
			var err error
			if connected && conn != nil {
				err = conn.WriteJSON(dgOutgoing{Type: "KeepAlive"})
			}
			c.mu.Unlock()

			if connected && err != nil {
				c.log.Debug().Err(err).Msg("keep-alive write failed")
			} else if connected {
				metrics.Default.StreamKeepAlives.Inc()
			}
		}
	}
}

// readLoop consumes server messages for one connection generation.
func (c *StreamingConnection) readLoop(conn *websocket.Conn, gen uint64, done chan struct{}) {
	defer close(done)

	for {
		_, message, err := conn.ReadMessage()
		if c.generation.Load() != gen {
			// A reconnect superseded this reader. Whatever was in
			// flight belongs to the dead socket.
			return
		}
		if err != nil {
			c.mu.Lock()
			if c.generation.Load() == gen {
				c.conn = nil
				c.state = StreamDisconnected
				// The server forgot the unanswered chunks with the
				// socket. Keeping their metadata would misalign the
				// FIFO for everything sent after a reconnect.
				c.pending = nil
				c.interim = ""
			}
			c.mu.Unlock()
			c.log.Debug().Err(err).Uint64("generation", gen).Msg("reader stopped")
			return
		}

		var resp dgResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.log.Warn().Err(err).Msg("unparseable stream message")
			continue
		}

		switch resp.Type {
		case "Results":
			c.handleResults(gen, &resp)

		case "UtteranceEnd":
			// Natural pause. Promote accumulated interim text to a
			// final so the user is not left waiting.
			c.mu.Lock()
			text := c.interim
			c.interim = ""
			c.mu.Unlock()
			if text != "" {
				c.emit(gen, text, 1, c.takePending(true), false)
			}

		case "SpeechStarted":
			if c.hooks.OnSpeech != nil {
				c.hooks.OnSpeech()
			}

		case "Error":
			if resp.Error != nil {
				msg := resp.Error.Message
				if resp.Error.Description != "" {
					msg = fmt.Sprintf("%s: %s", msg, resp.Error.Description)
				}
				c.log.Warn().Str("error", msg).Msg("stream error message")
			}

		case "Metadata":
			c.log.Debug().Msg("stream session metadata received")
		}
	}
}

func (c *StreamingConnection) handleResults(gen uint64, resp *dgResponse) {
	var alt dgAlternative
	if resp.Channel != nil && len(resp.Channel.Alternatives) > 0 {
		alt = resp.Channel.Alternatives[0]
	}
	isFinal := resp.IsFinal || resp.SpeechFinal

	// Finals consume their FIFO entry even when the text is discarded
	// below; otherwise every later result inherits wrong timings.
	info := c.takePending(isFinal)

	c.mu.Lock()
	if isFinal {
		c.interim = ""
	} else if alt.Transcript != "" {
		c.interim = alt.Transcript
	}
	c.mu.Unlock()

	if alt.Transcript == "" {
		return
	}
	if alt.Confidence < c.ConfidenceThreshold() {
		metrics.Default.TranscriptsSkipped.WithLabelValues("low_confidence").Inc()
		return
	}

	c.emit(gen, alt.Transcript, alt.Confidence, info, !isFinal)
}

// takePending peeks the pending FIFO, popping when pop is true. The
// front entry describes the oldest unanswered chunk; partials reuse it
// so the eventual final keeps the same timings.
func (c *StreamingConnection) takePending(pop bool) PendingChunkInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	var info PendingChunkInfo
	if len(c.pending) > 0 {
		info = c.pending[0]
		if pop {
			c.pending = c.pending[1:]
		}
	}
	return info
}

// emit builds a transcript update and pushes it through the hooks.
func (c *StreamingConnection) emit(gen uint64, text string, confidence float32, info PendingChunkInfo, isPartial bool) {
	if c.generation.Load() != gen {
		return
	}

	if c.hooks.OnSpeech != nil {
		c.hooks.OnSpeech()
	}

	var seq uint64
	if c.hooks.NextSequence != nil {
		seq = c.hooks.NextSequence()
	}

	update := events.TranscriptUpdate{
		Text:           text,
		Timestamp:      time.Now().Format("15:04:05"),
		Source:         string(c.cfg.Device),
		SequenceID:     seq,
		IsPartial:      isPartial,
		Confidence:     confidence,
		AudioStartTime: info.AudioStartTime,
		AudioEndTime:   info.AudioEndTime,
		Duration:       info.Duration,
		SourceType:     c.cfg.Device.SourceType(),
	}

	if c.hooks.Emit != nil {
		c.hooks.Emit(update)
	}

	kind := "final"
	if isPartial {
		kind = "partial"
	}
	metrics.Default.TranscriptsEmitted.WithLabelValues(string(c.cfg.Device), kind).Inc()
}

// teardown drops the current connection and every in-flight result.
// Pending metadata and interim text are cleared: after a reconnect the
// server has no memory of chunks sent on the old socket.
func (c *StreamingConnection) teardown() {
	c.generation.Add(1)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StreamDisconnected
	c.pending = nil
	c.interim = ""
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Close finishes the stream gracefully: ask the server to flush its
// final results, wait for the reader to drain them, then drop the
// socket. Bounded by the close timeout.
func (c *StreamingConnection) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	done := c.readerDone
	cancelKA := c.keepAliveCancel
	c.mu.Unlock()

	if cancelKA != nil {
		cancelKA()
	}

	if conn == nil {
		return nil
	}

	if err := func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn == nil {
			return nil
		}
		return c.conn.WriteJSON(dgOutgoing{Type: "CloseStream"})
	}(); err != nil {
		c.log.Debug().Err(err).Msg("close-stream write failed")
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(c.cfg.CloseTimeout):
			c.log.Warn().Dur("timeout", c.cfg.CloseTimeout).Msg("reader did not finish before close timeout")
		case <-ctx.Done():
		}
	}

	c.teardown()
	c.log.Info().Msg("stream closed")
	return nil
}
