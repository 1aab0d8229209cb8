// Package speech provides the per-frame speech/non-speech classifiers used to
// drive segment collection.
package speech

import (
	"fmt"

	"github.com/mattermost/calls-autocut/cmd/autocut/vad"
)

type DetectorType string

const (
	DetectorWebRTC DetectorType = "webrtc"
	DetectorEnergy DetectorType = "energy"
	DetectorSilero DetectorType = "silero"
)

const (
	AggressivenessMin = 0
	AggressivenessMax = 3
)

func (d DetectorType) IsValid() bool {
	switch d {
	case DetectorWebRTC, DetectorEnergy, DetectorSilero:
		return true
	default:
		return false
	}
}

type Config struct {
	Detector DetectorType
	// Higher values reject more borderline frames as non-speech.
	Aggressiveness int
	SampleRate     int
	// The path to the ONNX model file, only used by the silero detector.
	ModelPath string
}

func (c Config) IsValid() error {
	if !c.Detector.IsValid() {
		return fmt.Errorf("invalid Detector %q", c.Detector)
	}
	if c.Aggressiveness < AggressivenessMin || c.Aggressiveness > AggressivenessMax {
		return fmt.Errorf("invalid Aggressiveness: should be in the range [%d, %d]", AggressivenessMin, AggressivenessMax)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: should be positive")
	}
	if c.Detector == DetectorWebRTC && !isWebRTCSampleRate(c.SampleRate) {
		return fmt.Errorf("invalid SampleRate: should be one of 8000, 16000, 32000, 48000")
	}
	if c.Detector == DetectorSilero && c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}
	return nil
}

// Oracle is a vad.Oracle holding resources that must be released.
type Oracle interface {
	vad.Oracle
	Close() error
}

// New creates an oracle for a single collection run.
func New(cfg Config) (Oracle, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	switch cfg.Detector {
	case DetectorSilero:
		sd, err := NewSileroDetector(cfg)
		if err != nil {
			return nil, err
		}
		return sd, nil
	case DetectorEnergy:
		ed, err := NewEnergyDetector(cfg.Aggressiveness)
		if err != nil {
			return nil, err
		}
		return ed, nil
	default:
		wd, err := NewWebRTCDetector(cfg.Aggressiveness)
		if err != nil {
			return nil, err
		}
		return wd, nil
	}
}

func checkFrame(frame []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(frame) == 0 {
		return fmt.Errorf("frame should not be empty")
	}
	if len(frame)%2 != 0 {
		return fmt.Errorf("invalid frame length %d (not divisible by 2)", len(frame))
	}
	return nil
}
