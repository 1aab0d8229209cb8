package speech

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/mattermost/calls-autocut/cmd/autocut/audio"
)

// RMS levels in dBFS a frame must reach to count as speech, indexed by
// aggressiveness.
var energyThresholdsDBFS = [AggressivenessMax + 1]float64{-55, -48, -42, -36}

// EnergyDetector classifies frames by their RMS level. It keeps no state
// between frames.
type EnergyDetector struct {
	thresholdDBFS float64
	closed        atomic.Bool
}

func NewEnergyDetector(aggressiveness int) (*EnergyDetector, error) {
	if aggressiveness < AggressivenessMin || aggressiveness > AggressivenessMax {
		return nil, fmt.Errorf("invalid aggressiveness %d", aggressiveness)
	}

	return &EnergyDetector{
		thresholdDBFS: energyThresholdsDBFS[aggressiveness],
	}, nil
}

func (d *EnergyDetector) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if d.closed.Load() {
		return false, fmt.Errorf("detector is closed")
	}
	if err := checkFrame(frame, sampleRate); err != nil {
		return false, err
	}

	return levelDBFS(audio.PCM16ToInt16(frame)) >= d.thresholdDBFS, nil
}

func (d *EnergyDetector) Close() error {
	d.closed.Store(true)
	return nil
}

// levelDBFS returns the RMS level of samples relative to full scale. Digital
// silence is -Inf.
func levelDBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}

	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(rms)
}
