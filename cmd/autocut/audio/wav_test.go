package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPCMIsValid(t *testing.T) {
	tcs := []struct {
		name          string
		pcm           PCM
		expectedError string
	}{
		{
			name:          "empty",
			expectedError: "invalid SampleRate: should be positive",
		},
		{
			name:          "stereo",
			pcm:           PCM{SampleRate: 16000, Channels: 2, BitDepth: 16},
			expectedError: "invalid Channels: expected mono, got 2",
		},
		{
			name:          "8-bit",
			pcm:           PCM{SampleRate: 16000, Channels: 1, BitDepth: 8},
			expectedError: "invalid BitDepth: expected 16, got 8",
		},
		{
			name:          "odd data",
			pcm:           PCM{SampleRate: 16000, Channels: 1, BitDepth: 16, Data: []byte{0}},
			expectedError: "invalid Data length (not divisible by 2)",
		},
		{
			name: "valid",
			pcm:  PCM{SampleRate: 16000, Channels: 1, BitDepth: 16, Data: []byte{0, 1}},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pcm.IsValid()
			if tc.expectedError == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expectedError)
			}
		})
	}
}

func TestPCMDuration(t *testing.T) {
	pcm := PCM{SampleRate: 16000, Channels: 1, BitDepth: 16, Data: make([]byte, 32000)}
	require.Equal(t, time.Second, pcm.Duration())
	require.Zero(t, PCM{}.Duration())
}

func TestPCMConversions(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	data := Int16ToPCM16(samples)
	require.Len(t, data, 12)
	require.Equal(t, []byte{0xff, 0xff}, data[4:6])
	require.Equal(t, samples, PCM16ToInt16(data))

	floats := PCM16ToFloat32(data)
	require.Len(t, floats, len(samples))
	require.Equal(t, float32(0), floats[0])
	require.Equal(t, float32(-1), floats[4])
	require.InDelta(t, 1, floats[3], 0.0001)
}

func TestWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speech.wav")

	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16((i % 200) * 100)
	}
	in := PCM{
		Data:       Int16ToPCM16(samples),
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}

	require.NoError(t, WriteWAV(path, in))

	out, err := ReadWAV(path)
	require.NoError(t, err)
	require.Equal(t, in, *out)
	require.Equal(t, 100*time.Millisecond, out.Duration())
}

func TestReadWAV(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		pcm, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
		require.Error(t, err)
		require.Nil(t, pcm)
	})

	t.Run("not a WAV", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.wav")
		require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0600))
		pcm, err := ReadWAV(path)
		require.EqualError(t, err, "invalid WAV file \""+path+"\"")
		require.Nil(t, pcm)
	})
}

func TestWriteWAVInvalid(t *testing.T) {
	err := WriteWAV(filepath.Join(t.TempDir(), "out.wav"), PCM{SampleRate: 16000, Channels: 2, BitDepth: 16})
	require.EqualError(t, err, "failed to validate PCM: invalid Channels: expected mono, got 2")
}
