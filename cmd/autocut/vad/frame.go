package vad

import (
	"fmt"
	"iter"
)

// BytesPerSample is the width of a signed 16-bit PCM sample.
const BytesPerSample = 2

// Frame is a fixed length slice of mono 16-bit PCM audio.
type Frame struct {
	Bytes     []byte
	Timestamp float64 // seconds
	Duration  float64 // seconds
}

// End returns the time at which the frame ends.
func (f Frame) End() float64 {
	return f.Timestamp + f.Duration
}

// FrameSize returns the byte length of a frame of frameDurationMs at sampleRate.
func FrameSize(sampleRate, frameDurationMs int) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate should be positive, got %d: %w", sampleRate, ErrInvalidConfig)
	}
	if frameDurationMs <= 0 {
		return 0, fmt.Errorf("frame duration should be positive, got %dms: %w", frameDurationMs, ErrInvalidConfig)
	}

	n := sampleRate * frameDurationMs / 1000 * BytesPerSample
	if n == 0 {
		return 0, fmt.Errorf("frame of %dms at %dHz holds no samples: %w", frameDurationMs, sampleRate, ErrInvalidConfig)
	}

	return n, nil
}

// SliceFrames splits samples into consecutive frames of frameDurationMs.
//
// The returned sequence is lazy and can be ranged over more than once. Iteration
// stops as soon as offset+n reaches the end of the buffer: a trailing partial frame
// is dropped, and so is the last frame of a buffer that is an exact multiple of the
// frame size. A buffer shorter than one frame yields nothing.
func SliceFrames(samples []byte, sampleRate, frameDurationMs int) (iter.Seq[Frame], error) {
	n, err := FrameSize(sampleRate, frameDurationMs)
	if err != nil {
		return nil, err
	}

	// Derived from n rather than frameDurationMs so that timestamps match the
	// actual byte spans.
	duration := float64(n) / float64(sampleRate) / BytesPerSample

	return func(yield func(Frame) bool) {
		var timestamp float64
		for offset := 0; offset+n < len(samples); offset += n {
			f := Frame{
				Bytes:     samples[offset : offset+n : offset+n],
				Timestamp: timestamp,
				Duration:  duration,
			}
			if !yield(f) {
				return
			}
			timestamp += duration
		}
	}, nil
}
