package report

import (
	"fmt"
	"math"

	"github.com/mattermost/calls-autocut/cmd/autocut/vad"
)

// Span is a speech interval in milliseconds.
type Span struct {
	StartTS int64
	EndTS   int64
}

func (s Span) DurationMs() int64 {
	return s.EndTS - s.StartTS
}

// Timeline lists the speech spans kept from a source file.
type Timeline struct {
	Source string
	Spans  []Span
}

func NewTimeline(source string, segments []vad.Segment) Timeline {
	tl := Timeline{
		Source: source,
		Spans:  make([]Span, 0, len(segments)),
	}
	for _, s := range segments {
		tl.Spans = append(tl.Spans, Span{
			StartTS: secondsToMs(s.Start),
			EndTS:   secondsToMs(s.End),
		})
	}
	return tl
}

// SpeechMs returns the summed length of all spans.
func (t Timeline) SpeechMs() int64 {
	var total int64
	for _, s := range t.Spans {
		total += s.DurationMs()
	}
	return total
}

func secondsToMs(s float64) int64 {
	return int64(math.Round(s * 1000))
}

// vttTS converts ts milliseconds in the 00:00:00.000 format.
func vttTS(ts int64, withMs bool) string {
	sMs := int64(1000)
	mMs := 60 * sMs
	hMs := 60 * mMs

	h := ts / hMs
	m := (ts - (h * hMs)) / mMs

	if withMs {
		s := ((ts - (h * hMs)) - m*mMs) / sMs
		ms := ((ts - (h * hMs)) - m*mMs) - s*sMs
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
	}

	s := int64(math.Round(float64(((ts - (h * hMs)) - m*mMs)) / float64(sMs)))
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
