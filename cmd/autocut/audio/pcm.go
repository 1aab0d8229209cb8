package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// PCM holds little-endian interleaved integer samples.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
	BitDepth   int
}

func (p PCM) IsValid() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: should be positive")
	}
	if p.Channels != 1 {
		return fmt.Errorf("invalid Channels: expected mono, got %d", p.Channels)
	}
	if p.BitDepth != 16 {
		return fmt.Errorf("invalid BitDepth: expected 16, got %d", p.BitDepth)
	}
	if len(p.Data)%2 != 0 {
		return fmt.Errorf("invalid Data length (not divisible by 2)")
	}
	return nil
}

// Duration returns the playback length of the samples.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 || p.BitDepth <= 0 {
		return 0
	}
	bytesPerSec := p.SampleRate * p.Channels * p.BitDepth / 8
	return time.Duration(float64(len(p.Data)) / float64(bytesPerSec) * float64(time.Second))
}

// Util to convert 16-bit PCM to int16 samples
func PCM16ToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Util to convert 16-bit PCM to float32 samples in the [-1, 1) range
func PCM16ToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return samples
}

// Util to convert int16 samples to 16-bit PCM
func Int16ToPCM16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
