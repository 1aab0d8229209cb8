package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveFile(StatusSuccess)
	m.ObserveFile(StatusSuccess)
	m.ObserveFile(StatusFailure)
	m.Segments.Add(3)
	m.SpeechSeconds.Add(1.5)
	m.VoicedSeconds.Add(1.2)
	m.InputAudioSeconds.Add(10)
	m.ProcessingDuration.Observe(2)

	require.Equal(t, 2.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(StatusSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(StatusFailure)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Segments))
	require.Equal(t, 1.5, testutil.ToFloat64(m.SpeechSeconds))
	require.Equal(t, 1.2, testutil.ToFloat64(m.VoicedSeconds))
	require.Equal(t, 10.0, testutil.ToFloat64(m.InputAudioSeconds))

	count, err := testutil.GatherAndCount(m.Registry(), "autocut_file_processing_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	t.Run("independent registries", func(t *testing.T) {
		other := New()
		require.Zero(t, testutil.ToFloat64(other.Segments))
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Segments.Add(4)

	path := filepath.Join(t.TempDir(), "autocut.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# TYPE autocut_segments_total counter")
	require.Contains(t, string(data), "autocut_segments_total 4")

	err = m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "autocut.prom"))
	require.ErrorContains(t, err, "failed to write metrics")
}
