package speech

import (
	"fmt"
	"os"

	"github.com/mattermost/calls-autocut/cmd/autocut/audio"

	silero "github.com/streamer45/silero-vad-go/speech"
)

// Samples per model window at 16kHz.
const sileroWindowSize = 512

// Speech probability thresholds indexed by aggressiveness.
var sileroThresholds = [AggressivenessMax + 1]float32{0.35, 0.5, 0.65, 0.8}

// SileroDetector classifies frames with the Silero VAD model. Each frame is
// prefixed with the tail of the previous frames so that the model input spans
// whole windows ending on the frame.
type SileroDetector struct {
	sd         *silero.Detector
	sampleRate int
	history    []float32
}

func NewSileroDetector(cfg Config) (*SileroDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("invalid ModelPath: failed to stat model file: %w", err)
	}
	if cfg.Aggressiveness < AggressivenessMin || cfg.Aggressiveness > AggressivenessMax {
		return nil, fmt.Errorf("invalid aggressiveness %d", cfg.Aggressiveness)
	}

	sd, err := silero.NewDetector(silero.DetectorConfig{
		ModelPath:  cfg.ModelPath,
		SampleRate: cfg.SampleRate,

		// Frames are classified one at a time so no smoothing is applied
		// across them.
		WindowSize:           sileroWindowSize,
		Threshold:            sileroThresholds[cfg.Aggressiveness],
		MinSilenceDurationMs: 0,
		MinSpeechDurationMs:  0,
		SilencePadMs:         0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech detector: %w", err)
	}

	return &SileroDetector{
		sd:         sd,
		sampleRate: cfg.SampleRate,
		history:    make([]float32, sileroWindowSize),
	}, nil
}

func (d *SileroDetector) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if d.sd == nil {
		return false, fmt.Errorf("detector is not initialized")
	}
	if err := checkFrame(frame, sampleRate); err != nil {
		return false, err
	}
	if sampleRate != d.sampleRate {
		return false, fmt.Errorf("unexpected sample rate %d, detector runs at %d", sampleRate, d.sampleRate)
	}

	samples := audio.PCM16ToFloat32(frame)
	in, lead := sileroInput(d.history, samples)

	_, segments, err := d.sd.DetectRealtime(in)
	if err != nil {
		return false, fmt.Errorf("failed to detect speech: %w", err)
	}

	d.history = appendHistory(d.history, samples)

	return hasSpeech(segments, lead, len(in)), nil
}

func (d *SileroDetector) Close() error {
	if d.sd == nil {
		return fmt.Errorf("detector is not initialized")
	}
	err := d.sd.Destroy()
	d.sd = nil
	return err
}

// sileroInput returns the model input for frame along with the offset the
// frame starts at: just enough history to round the input up to whole model
// windows, then the frame itself.
func sileroInput(history, frame []float32) ([]float32, int) {
	lead := (sileroWindowSize - len(frame)%sileroWindowSize) % sileroWindowSize

	in := make([]float32, 0, lead+len(frame))
	in = append(in, history[len(history)-lead:]...)
	return append(in, frame...), lead
}

// hasSpeech reports whether any voiced segment overlaps the samples in
// [start, end).
func hasSpeech(segments []silero.RealtimeSegment, start, end int) bool {
	for _, s := range segments {
		if !s.Silence && s.End > start && s.Start < end {
			return true
		}
	}
	return false
}

// appendHistory keeps the last sileroWindowSize samples seen.
func appendHistory(history, frame []float32) []float32 {
	if len(frame) >= sileroWindowSize {
		copy(history, frame[len(frame)-sileroWindowSize:])
		return history
	}
	n := copy(history, history[len(frame):])
	copy(history[n:], frame)
	return history
}
