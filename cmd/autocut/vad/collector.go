package vad

import (
	"fmt"
	"iter"
)

// Oracle decides whether a single frame of PCM audio contains speech.
type Oracle interface {
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(frame []byte, sampleRate int) (bool, error)

func (fn OracleFunc) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	return fn(frame, sampleRate)
}

// Segment is a detected speech interval, in seconds.
type Segment struct {
	Start float64
	End   float64
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Interval is the span of a single speech frame that took part in a run.
type Interval struct {
	Start float64
	End   float64
}

type State int

const (
	Untriggered State = iota
	Triggered
)

func (s State) String() string {
	switch s {
	case Untriggered:
		return "untriggered"
	case Triggered:
		return "triggered"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	SampleRate        int
	FrameDurationMs   int
	PaddingDurationMs int
}

func (c Config) IsValid() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SampleRate should be positive: %w", ErrInvalidConfig)
	}
	if c.FrameDurationMs <= 0 {
		return fmt.Errorf("FrameDurationMs should be positive: %w", ErrInvalidConfig)
	}
	if c.PaddingDurationMs < 0 {
		return fmt.Errorf("PaddingDurationMs should not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

// PaddingFrames returns how many frames fit in the padding duration. Any
// remainder is truncated.
func (c Config) PaddingFrames() int {
	return c.PaddingDurationMs / c.FrameDurationMs
}

// Collector turns a stream of frames into speech segments.
//
// While untriggered every classified frame goes through the padding window and
// the first speech frame triggers a run starting at that frame's timestamp.
// While triggered a single non-speech frame ends the run: there is no padding on
// the trailing edge. A Collector is not safe for concurrent use.
type Collector struct {
	cfg    Config
	oracle Oracle

	window *paddingWindow
	state  State
	start  float64
	last   Frame
	voiced []Interval
}

func NewCollector(cfg Config, oracle Oracle) (*Collector, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle should not be nil: %w", ErrInvalidConfig)
	}

	return &Collector{
		cfg:    cfg,
		oracle: oracle,
		window: newPaddingWindow(cfg.PaddingFrames()),
	}, nil
}

// Push classifies f and advances the state machine. It returns a segment when f
// closes a run.
func (c *Collector) Push(f Frame) (Segment, bool, error) {
	isSpeech, err := c.oracle.IsSpeech(f.Bytes, c.cfg.SampleRate)
	if err != nil {
		return Segment{}, false, &ClassificationError{Timestamp: f.Timestamp, Err: err}
	}
	c.last = f

	if c.state == Untriggered {
		c.window.push(windowEntry{frame: f, isSpeech: isSpeech})
		if isSpeech {
			c.state = Triggered
			c.start = f.Timestamp
			c.window.each(func(e windowEntry) {
				if e.isSpeech {
					c.voiced = append(c.voiced, Interval{Start: e.frame.Timestamp, End: e.frame.End()})
				}
			})
			c.window.reset()
		}
		return Segment{}, false, nil
	}

	if !isSpeech {
		c.state = Untriggered
		return Segment{Start: c.start, End: f.End()}, true, nil
	}

	c.voiced = append(c.voiced, Interval{Start: f.Timestamp, End: f.End()})

	return Segment{}, false, nil
}

// Flush closes a run still in progress, ending it with the last pushed frame.
func (c *Collector) Flush() (Segment, bool) {
	if c.state != Triggered {
		return Segment{}, false
	}

	c.state = Untriggered
	c.window.reset()

	return Segment{Start: c.start, End: c.last.End()}, true
}

func (c *Collector) State() State {
	return c.state
}

// Voiced returns the spans of every speech frame that belonged to a run so far.
func (c *Collector) Voiced() []Interval {
	out := make([]Interval, len(c.voiced))
	copy(out, c.voiced)
	return out
}

// VoicedDuration returns the summed length of Voiced in seconds.
func (c *Collector) VoicedDuration() float64 {
	var total float64
	for _, iv := range c.voiced {
		total += iv.End - iv.Start
	}
	return total
}

// CollectSegments lazily yields the speech segments found in frames. Each
// iteration starts a fresh collection run. Iteration stops after the first
// error, which is yielded together with a zero Segment.
func CollectSegments(cfg Config, oracle Oracle, frames iter.Seq[Frame]) (iter.Seq2[Segment, error], error) {
	if _, err := NewCollector(cfg, oracle); err != nil {
		return nil, err
	}

	return func(yield func(Segment, error) bool) {
		c, _ := NewCollector(cfg, oracle)

		for f := range frames {
			seg, ok, err := c.Push(f)
			if err != nil {
				yield(Segment{}, err)
				return
			}
			if ok && !yield(seg, nil) {
				return
			}
		}

		if seg, ok := c.Flush(); ok {
			yield(seg, nil)
		}
	}, nil
}

// Collect slices samples into frames and returns every speech segment found.
func Collect(cfg Config, oracle Oracle, samples []byte) ([]Segment, error) {
	frames, err := SliceFrames(samples, cfg.SampleRate, cfg.FrameDurationMs)
	if err != nil {
		return nil, err
	}

	segments, err := CollectSegments(cfg, oracle, frames)
	if err != nil {
		return nil, err
	}

	var out []Segment
	for seg, err := range segments {
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}

	return out, nil
}
