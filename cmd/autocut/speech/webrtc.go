package speech

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCDetector classifies frames with the WebRTC voice activity detector.
// Only 10, 20 or 30ms frames at 8, 16, 32 or 48kHz are accepted.
type WebRTCDetector struct {
	mut    sync.Mutex
	vad    *webrtcvad.VAD
	closed bool
}

func NewWebRTCDetector(aggressiveness int) (*WebRTCDetector, error) {
	if aggressiveness < AggressivenessMin || aggressiveness > AggressivenessMax {
		return nil, fmt.Errorf("invalid aggressiveness %d", aggressiveness)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create vad: %w", err)
	}

	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("failed to set vad mode: %w", err)
	}

	return &WebRTCDetector{
		vad: v,
	}, nil
}

func (d *WebRTCDetector) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := checkFrame(frame, sampleRate); err != nil {
		return false, err
	}

	d.mut.Lock()
	defer d.mut.Unlock()

	if d.closed {
		return false, fmt.Errorf("detector is closed")
	}

	if !d.vad.ValidRateAndFrameLength(sampleRate, len(frame)/2) {
		return false, fmt.Errorf("unsupported frame of %d samples at %dHz", len(frame)/2, sampleRate)
	}

	isSpeech, err := d.vad.Process(sampleRate, frame)
	if err != nil {
		return false, fmt.Errorf("failed to process frame: %w", err)
	}

	return isSpeech, nil
}

// Close marks the detector as unusable. The native instance is freed by the
// library's finalizer.
func (d *WebRTCDetector) Close() error {
	d.mut.Lock()
	defer d.mut.Unlock()
	d.closed = true
	return nil
}

func isWebRTCSampleRate(rate int) bool {
	switch rate {
	case 8000, 16000, 32000, 48000:
		return true
	default:
		return false
	}
}
