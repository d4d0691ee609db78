package provider

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/ponchovillalobos/maity-desktop/internal/logging"
	"github.com/ponchovillalobos/maity-desktop/internal/metrics"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// cloudConfidenceThreshold filters low-quality results from scoring
// cloud backends.
const cloudConfidenceThreshold = 0.3

// OpenAICompatible uploads chunks to an OpenAI-style transcription API.
// Groq exposes the same surface behind a different base URL.
type OpenAICompatible struct {
	client *openai.Client
	name   string
	model  string
	log    zerolog.Logger
}

func NewOpenAI(apiKey, model string) *OpenAICompatible {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAICompatible{
		client: openai.NewClient(apiKey),
		name:   "openai",
		model:  model,
		log:    logging.Component("openai"),
	}
}

func NewGroq(apiKey, model, baseURL string) *OpenAICompatible {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAICompatible{
		client: openai.NewClientWithConfig(cfg),
		name:   "groq",
		model:  model,
		log:    logging.Component("groq"),
	}
}

func (p *OpenAICompatible) Name() string { return p.name }

func (p *OpenAICompatible) IsModelLoaded() bool { return p.client != nil }

func (p *OpenAICompatible) CurrentModel() (string, bool) { return p.model, true }

func (p *OpenAICompatible) ConfidenceThreshold() float32 { return cloudConfidenceThreshold }

func (p *OpenAICompatible) Close(context.Context) error { return nil }

func (p *OpenAICompatible) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	if len(samples) < MinSamples {
		return Result{}, &AudioTooShortError{Samples: len(samples), Minimum: MinSamples}
	}
	if !p.IsModelLoaded() {
		return Result{}, ErrModelNotLoaded
	}

	req := openai.AudioRequest{
		Model:    p.model,
		Reader:   bytes.NewReader(wavFromSamples(samples)),
		FilePath: "audio.wav",
		Language: language,
	}

	start := time.Now()
	resp, err := p.client.CreateTranscription(ctx, req)
	elapsed := time.Since(start)
	metrics.Default.TranscribeDuration.WithLabelValues(p.name).Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		p.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("transcription request failed")
		return Result{}, &EngineError{Provider: p.name, Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	p.log.Debug().Int("samples", len(samples)).Dur("elapsed", elapsed).Msg("chunk transcribed")

	return Result{Text: text}, nil
}
