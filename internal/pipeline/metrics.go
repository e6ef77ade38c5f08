package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline activity. It uses a private registry so the textfile
// only carries this session's series.
type Metrics struct {
	registry *prometheus.Registry

	ChunksCaptured        prometheus.Counter
	ChunksDropped         *prometheus.CounterVec
	TranscriptionFailures prometheus.Counter
	TranscriptLines       prometheus.Counter
	Mentions              *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	LastChunkTimestamp    prometheus.Gauge
}

// NewMetrics creates and registers the pipeline series.
func NewMetrics(sessionID string) *Metrics {
	labels := prometheus.Labels{"session": sessionID}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChunksCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "meetwatch_chunks_captured_total",
			Help:        "Audio chunks read from the capture sink",
			ConstLabels: labels,
		}),
		ChunksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "meetwatch_chunks_dropped_total",
			Help:        "Audio chunks discarded without a transcript line",
			ConstLabels: labels,
		}, []string{"reason"}),
		TranscriptionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "meetwatch_transcription_failures_total",
			Help:        "Transcription requests that returned an error",
			ConstLabels: labels,
		}),
		TranscriptLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "meetwatch_transcript_lines_total",
			Help:        "Lines appended to the transcript",
			ConstLabels: labels,
		}),
		Mentions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "meetwatch_mentions_total",
			Help:        "Mention records appended",
			ConstLabels: labels,
		}, []string{"kind"}),
		TranscriptionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "meetwatch_transcription_duration_seconds",
			Help:        "Time spent waiting for each transcription request",
			ConstLabels: labels,
			Buckets:     []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		LastChunkTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "meetwatch_last_chunk_timestamp_seconds",
			Help:        "Unix time the most recent chunk was submitted",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(
		m.ChunksCaptured,
		m.ChunksDropped,
		m.TranscriptionFailures,
		m.TranscriptLines,
		m.Mentions,
		m.TranscriptionDuration,
		m.LastChunkTimestamp,
	)
	return m
}

func (m *Metrics) observeSubmit(at time.Time) {
	m.ChunksCaptured.Inc()
	m.LastChunkTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes the current values in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Gatherer exposes the registry for tests and exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
