package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autocut"

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the counters of a batch run. Each instance owns its registry
// so that runs and tests don't share state.
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed     *prometheus.CounterVec
	Segments           prometheus.Counter
	SpeechSeconds      prometheus.Counter
	VoicedSeconds      prometheus.Counter
	InputAudioSeconds  prometheus.Counter
	ProcessingDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Total number of input files processed",
		}, []string{"status"}),
		Segments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Total number of speech segments detected",
		}),
		SpeechSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_seconds_total",
			Help:      "Total duration of the detected speech segments",
		}),
		VoicedSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voiced_seconds_total",
			Help:      "Total duration of the frames classified as speech within segments",
		}),
		InputAudioSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_audio_seconds_total",
			Help:      "Total duration of the extracted input audio",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_processing_duration_seconds",
			Help:      "Time spent processing a single input file",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveFile(status string) {
	m.FilesProcessed.WithLabelValues(status).Inc()
}

// WriteTextfile dumps the current values in the text exposition format, for
// consumption by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
