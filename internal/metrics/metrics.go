// Package metrics exposes Prometheus instrumentation for the
// transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maity"

// Metrics holds every collector the daemon registers. Use the package
// Default instance; collectors register against the default registry
// and must only be created once per process.
type Metrics struct {
	ChunksQueued    prometheus.Counter
	ChunksCompleted prometheus.Counter
	ChunksDropped   prometheus.Counter

	TranscriptsEmitted *prometheus.CounterVec
	TranscriptsSkipped *prometheus.CounterVec

	AccumulatorFlushes *prometheus.CounterVec

	StreamReconnects  *prometheus.CounterVec
	StreamSendErrors  *prometheus.CounterVec
	StreamKeepAlives  prometheus.Counter

	SessionsStarted  prometheus.Counter
	SessionsFinished prometheus.Counter
	SessionDuration  prometheus.Histogram

	TranscribeDuration *prometheus.HistogramVec
}

// Default is the process-wide metrics instance.
var Default = newMetrics()

func newMetrics() *Metrics {
	return &Metrics{
		ChunksQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_queued_total",
			Help:      "Audio chunks handed to the transcription queue.",
		}),
		ChunksCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_completed_total",
			Help:      "Audio chunks fully processed by a worker.",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Audio chunks dropped because the queue stayed full.",
		}),
		TranscriptsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_emitted_total",
			Help:      "Transcript updates emitted to listeners.",
		}, []string{"device", "kind"}),
		TranscriptsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_skipped_total",
			Help:      "Transcription results discarded before emission.",
		}, []string{"reason"}),
		AccumulatorFlushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accumulator_flushes_total",
			Help:      "Accumulator flushes by trigger.",
		}, []string{"device", "reason"}),
		StreamReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Streaming connection reconnect attempts.",
		}, []string{"device"}),
		StreamSendErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_send_errors_total",
			Help:      "Failed audio sends on streaming connections.",
		}, []string{"device"}),
		StreamKeepAlives: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_keepalives_total",
			Help:      "Keep-alive messages sent on streaming connections.",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Recording sessions started.",
		}),
		SessionsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Recording sessions stopped and finalized.",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock length of recording sessions.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
		}),
		TranscribeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_duration_seconds",
			Help:      "Latency of provider transcription calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}
