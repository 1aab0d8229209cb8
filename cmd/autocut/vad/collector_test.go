package vad

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 16000
	testFrameMs    = 30
	testFrameSize  = 960
	testFrameDur   = 0.03
)

// patternSamples builds PCM where each frame is marked speech ('S') or silence
// ('_') through its first byte. A trailing partial frame keeps the last full
// frame from being dropped.
func patternSamples(pattern string) []byte {
	samples := make([]byte, 0, len(pattern)*testFrameSize+2)
	for _, c := range pattern {
		frame := make([]byte, testFrameSize)
		if c == 'S' {
			frame[0] = 1
		}
		samples = append(samples, frame...)
	}
	return append(samples, 0, 0)
}

func markerOracle() OracleFunc {
	return func(frame []byte, _ int) (bool, error) {
		return frame[0] != 0, nil
	}
}

func testConfig(paddingMs int) Config {
	return Config{
		SampleRate:        testSampleRate,
		FrameDurationMs:   testFrameMs,
		PaddingDurationMs: paddingMs,
	}
}

func collectPattern(t *testing.T, pattern string, paddingMs int) []Segment {
	t.Helper()
	segments, err := Collect(testConfig(paddingMs), markerOracle(), patternSamples(pattern))
	require.NoError(t, err)
	return segments
}

func requireSegments(t *testing.T, expected [][2]int, actual []Segment) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i, e := range expected {
		require.InDelta(t, float64(e[0])*testFrameDur, actual[i].Start, 1e-9, "segment %d start", i)
		require.InDelta(t, float64(e[1])*testFrameDur, actual[i].End, 1e-9, "segment %d end", i)
	}
}

func TestConfigIsValid(t *testing.T) {
	tcs := []struct {
		name          string
		cfg           Config
		expectedError string
	}{
		{
			name:          "empty config",
			expectedError: "SampleRate should be positive: invalid configuration",
		},
		{
			name:          "zero frame duration",
			cfg:           Config{SampleRate: 16000},
			expectedError: "FrameDurationMs should be positive: invalid configuration",
		},
		{
			name:          "negative padding",
			cfg:           Config{SampleRate: 16000, FrameDurationMs: 30, PaddingDurationMs: -1},
			expectedError: "PaddingDurationMs should not be negative: invalid configuration",
		},
		{
			name: "zero padding",
			cfg:  Config{SampleRate: 16000, FrameDurationMs: 30},
		},
		{
			name: "valid",
			cfg:  Config{SampleRate: 16000, FrameDurationMs: 30, PaddingDurationMs: 300},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.IsValid()
			if tc.expectedError == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expectedError)
			}
		})
	}
}

func TestPaddingFrames(t *testing.T) {
	require.Equal(t, 10, testConfig(300).PaddingFrames())
	require.Equal(t, 3, testConfig(90).PaddingFrames())
	require.Equal(t, 3, testConfig(119).PaddingFrames())
	require.Equal(t, 0, testConfig(29).PaddingFrames())
	require.Equal(t, 0, testConfig(0).PaddingFrames())
}

func TestNewCollector(t *testing.T) {
	t.Run("nil oracle", func(t *testing.T) {
		c, err := NewCollector(testConfig(300), nil)
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.Nil(t, c)
	})

	t.Run("invalid config", func(t *testing.T) {
		c, err := NewCollector(Config{}, markerOracle())
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.Nil(t, c)
	})

	t.Run("initial state", func(t *testing.T) {
		c, err := NewCollector(testConfig(300), markerOracle())
		require.NoError(t, err)
		require.Equal(t, Untriggered, c.State())
		require.Equal(t, 10, c.window.capacity())
		require.Empty(t, c.Voiced())
	})
}

func TestCollectSegments(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		segments, err := Collect(testConfig(300), markerOracle(), nil)
		require.NoError(t, err)
		require.Empty(t, segments)
	})

	t.Run("all silence", func(t *testing.T) {
		require.Empty(t, collectPattern(t, strings.Repeat("_", 50), 300))
	})

	t.Run("all speech", func(t *testing.T) {
		segments := collectPattern(t, strings.Repeat("S", 50), 300)
		requireSegments(t, [][2]int{{0, 50}}, segments)
	})

	t.Run("single frame gap closes a run", func(t *testing.T) {
		segments := collectPattern(t, "SSSSS_SSSS", 300)
		requireSegments(t, [][2]int{{0, 6}, {6, 10}}, segments)
		require.InDelta(t, segments[0].End, segments[1].Start, 1e-12)
	})

	t.Run("end includes the closing silence frame", func(t *testing.T) {
		segments := collectPattern(t, "__SSS____", 300)
		requireSegments(t, [][2]int{{2, 6}}, segments)
	})

	t.Run("padding reach back", func(t *testing.T) {
		c, err := NewCollector(testConfig(3*testFrameMs), markerOracle())
		require.NoError(t, err)

		frames := collectFrames(t, patternSamples("__SSSS_"), testSampleRate, testFrameMs)
		require.Len(t, frames, 7)

		var segments []Segment
		for i, f := range frames {
			seg, ok, err := c.Push(f)
			require.NoError(t, err)
			if i == 2 {
				// The window held [silence, silence, speech] when the run triggered.
				require.Equal(t, Triggered, c.State())
				require.Equal(t, 0, c.window.count())
				require.Len(t, c.Voiced(), 1)
				require.Equal(t, frames[2].Timestamp, c.Voiced()[0].Start)
			}
			if ok {
				segments = append(segments, seg)
			}
		}

		require.Len(t, segments, 1)
		require.Equal(t, frames[2].Timestamp, segments[0].Start)
		require.Equal(t, frames[6].End(), segments[0].End)
		require.Len(t, c.Voiced(), 4)
		require.InDelta(t, 4*testFrameDur, c.VoicedDuration(), 1e-9)
	})

	t.Run("zero capacity window still triggers", func(t *testing.T) {
		segments := collectPattern(t, "_SS_S", 10)
		requireSegments(t, [][2]int{{1, 4}, {4, 5}}, segments)
	})

	t.Run("run in progress is flushed", func(t *testing.T) {
		segments := collectPattern(t, "S_SS", 300)
		requireSegments(t, [][2]int{{0, 2}, {2, 4}}, segments)
	})

	t.Run("disjoint and ordered", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(42))
		for i := 0; i < 50; i++ {
			var sb strings.Builder
			for j := 0; j < 200; j++ {
				if rnd.Intn(3) == 0 {
					sb.WriteByte('_')
				} else {
					sb.WriteByte('S')
				}
			}
			segments := collectPattern(t, sb.String(), 300)
			for k, s := range segments {
				require.Less(t, s.Start, s.End)
				if k > 0 {
					require.LessOrEqual(t, segments[k-1].End, s.Start+1e-9)
					require.Less(t, segments[k-1].Start, s.Start)
				}
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		samples := patternSamples("__SS_S___SSSSS__S_")
		first, err := Collect(testConfig(300), markerOracle(), samples)
		require.NoError(t, err)
		second, err := Collect(testConfig(300), markerOracle(), samples)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.NotEmpty(t, first)
	})

	t.Run("sequence is restartable", func(t *testing.T) {
		frames, err := SliceFrames(patternSamples("SS_S"), testSampleRate, testFrameMs)
		require.NoError(t, err)
		seq, err := CollectSegments(testConfig(300), markerOracle(), frames)
		require.NoError(t, err)

		var first, second []Segment
		for s, err := range seq {
			require.NoError(t, err)
			first = append(first, s)
		}
		for s, err := range seq {
			require.NoError(t, err)
			second = append(second, s)
		}
		require.Len(t, first, 2)
		require.Equal(t, first, second)
	})

	t.Run("lazy consumption stops early", func(t *testing.T) {
		var calls int
		oracle := OracleFunc(func(frame []byte, _ int) (bool, error) {
			calls++
			return frame[0] != 0, nil
		})
		frames, err := SliceFrames(patternSamples("S_S_S_S_S_"), testSampleRate, testFrameMs)
		require.NoError(t, err)
		seq, err := CollectSegments(testConfig(300), oracle, frames)
		require.NoError(t, err)

		for range seq {
			break
		}
		require.Equal(t, 2, calls)
	})

	t.Run("invalid config", func(t *testing.T) {
		frames, err := SliceFrames(patternSamples("S"), testSampleRate, testFrameMs)
		require.NoError(t, err)
		seq, err := CollectSegments(Config{SampleRate: testSampleRate}, markerOracle(), frames)
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.Nil(t, seq)
	})
}

func TestCollectClassificationError(t *testing.T) {
	errModel := errors.New("model failure")
	var calls int
	oracle := OracleFunc(func(frame []byte, sampleRate int) (bool, error) {
		calls++
		require.Equal(t, testSampleRate, sampleRate)
		if calls == 3 {
			return false, errModel
		}
		return true, nil
	})

	segments, err := Collect(testConfig(300), oracle, patternSamples("SSSSSS"))
	require.Nil(t, segments)
	require.ErrorIs(t, err, errModel)

	var classErr *ClassificationError
	require.ErrorAs(t, err, &classErr)
	require.InDelta(t, 2*testFrameDur, classErr.Timestamp, 1e-9)
	require.EqualError(t, err, "failed to classify frame at 0.060s: model failure")
	require.Equal(t, 3, calls)
}

func TestCollectorFlush(t *testing.T) {
	c, err := NewCollector(testConfig(300), markerOracle())
	require.NoError(t, err)

	_, ok := c.Flush()
	require.False(t, ok)

	frames := collectFrames(t, patternSamples("_SS"), testSampleRate, testFrameMs)
	for _, f := range frames {
		_, ok, err := c.Push(f)
		require.NoError(t, err)
		require.False(t, ok)
	}

	seg, ok := c.Flush()
	require.True(t, ok)
	require.Equal(t, Segment{Start: frames[1].Timestamp, End: frames[2].End()}, seg)
	require.Equal(t, Untriggered, c.State())

	_, ok = c.Flush()
	require.False(t, ok)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "untriggered", Untriggered.String())
	require.Equal(t, "triggered", Triggered.String())
	require.Equal(t, "State(7)", State(7).String())
}
