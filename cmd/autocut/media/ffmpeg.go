package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattermost/calls-autocut/cmd/autocut/vad"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type Config struct {
	FFmpegPath  string
	FFprobePath string
}

func (c *Config) SetDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
}

// FFmpeg drives the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	cfg    Config
	runner Runner
}

// NewFFmpeg returns a tool running commands through runner. A nil runner
// executes real processes.
func NewFFmpeg(cfg Config, runner Runner) *FFmpeg {
	cfg.SetDefaults()
	if runner == nil {
		runner = execRunner{}
	}
	return &FFmpeg{
		cfg:    cfg,
		runner: runner,
	}
}

// ProbeFrameRate returns the frame rate of the first video stream.
func (f *FFmpeg) ProbeFrameRate(ctx context.Context, videoPath string) (float64, error) {
	out, err := f.runner.Run(ctx, f.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to probe frame rate: %w", err)
	}

	fps, err := parseFrameRate(string(out))
	if err != nil {
		return 0, fmt.Errorf("failed to parse frame rate: %w", err)
	}

	return fps, nil
}

// parseFrameRate accepts either a "num/den" rational or a plain number.
func parseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty frame rate")
	}

	var fps float64
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numerator %q: %w", num, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid denominator %q: %w", den, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("invalid zero denominator")
		}
		fps = n / d
	} else {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
		fps = v
	}

	if fps <= 0 {
		return 0, fmt.Errorf("frame rate should be positive, got %v", fps)
	}

	return fps, nil
}

// ExtractAudio writes the audio track of videoPath to outPath as mono 16-bit
// PCM WAV at sampleRate.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, outPath string, sampleRate int) error {
	_, err := f.runner.Run(ctx, f.cfg.FFmpegPath,
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("failed to extract audio: %w", err)
	}
	return nil
}

// Cut keeps only the given segments of videoPath, concatenated in order, and
// writes the result to outPath at frameRate. Without segments the input is
// copied unchanged.
func (f *FFmpeg) Cut(ctx context.Context, videoPath, outPath string, segments []vad.Segment, frameRate float64) error {
	if len(segments) == 0 {
		slog.Info("no segments to concatenate, exporting full video", slog.String("video", videoPath))
		if _, err := f.runner.Run(ctx, f.cfg.FFmpegPath, "-y", "-i", videoPath, "-c", "copy", outPath); err != nil {
			return fmt.Errorf("failed to copy video: %w", err)
		}
		return nil
	}

	_, err := f.runner.Run(ctx, f.cfg.FFmpegPath,
		"-y",
		"-i", videoPath,
		"-filter_complex", FilterComplex(segments),
		"-map", "[v]",
		"-map", "[a]",
		"-r", formatFloat(frameRate),
		outPath,
	)
	if err != nil {
		return fmt.Errorf("failed to cut video: %w", err)
	}

	return nil
}

// FilterComplex builds the ffmpeg filter graph trimming every segment out of
// the first input's video and audio streams and concatenating them into the
// [v] and [a] outputs.
func FilterComplex(segments []vad.Segment) string {
	var sb strings.Builder

	for i, s := range segments {
		start, end := formatFloat(s.Start), formatFloat(s.End)
		fmt.Fprintf(&sb, "[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];", start, end, i)
		fmt.Fprintf(&sb, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];", start, end, i)
	}

	for i := range segments {
		fmt.Fprintf(&sb, "[v%d]", i)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=1:a=0[v];", len(segments))

	for i := range segments {
		fmt.Fprintf(&sb, "[a%d]", i)
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=0:a=1[a];", len(segments))

	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
