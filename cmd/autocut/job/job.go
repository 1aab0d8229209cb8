package job

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattermost/calls-autocut/cmd/autocut/audio"
	"github.com/mattermost/calls-autocut/cmd/autocut/config"
	"github.com/mattermost/calls-autocut/cmd/autocut/metrics"
	"github.com/mattermost/calls-autocut/cmd/autocut/report"
	"github.com/mattermost/calls-autocut/cmd/autocut/speech"
	"github.com/mattermost/calls-autocut/cmd/autocut/vad"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MediaTool is the set of media operations a file goes through.
type MediaTool interface {
	ProbeFrameRate(ctx context.Context, videoPath string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, outPath string, sampleRate int) error
	Cut(ctx context.Context, videoPath, outPath string, segments []vad.Segment, frameRate float64) error
}

type OracleFactory func(cfg speech.Config) (speech.Oracle, error)

type FileResult struct {
	Input  string
	Output string
	// The final lifecycle state, either StateDone or StateFailed.
	State          string
	Segments       []vad.Segment
	AudioDuration  time.Duration
	VoicedDuration float64
	Err            error
}

type Summary struct {
	Results []FileResult
}

func (s Summary) Failed() []FileResult {
	var failed []FileResult
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

type Processor struct {
	cfg       config.AutocutConfig
	media     MediaTool
	metrics   *metrics.Metrics
	newOracle OracleFactory
}

func NewProcessor(cfg config.AutocutConfig, media MediaTool, m *metrics.Metrics) (*Processor, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	if media == nil {
		return nil, fmt.Errorf("media tool should not be nil")
	}
	if m == nil {
		m = metrics.New()
	}

	return &Processor{
		cfg:       cfg,
		media:     media,
		metrics:   m,
		newOracle: speech.New,
	}, nil
}

// Run processes every input file found in the input directory. Failures are
// isolated per file and reported in the returned summary.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	files, err := p.inputFiles()
	if err != nil {
		return Summary{}, err
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("failed to create output dir: %w", err)
	}

	slog.Info("starting batch",
		slog.String("inputDir", p.cfg.InputDir),
		slog.String("outputDir", p.cfg.OutputDir),
		slog.Int("files", len(files)),
		slog.Int("workers", p.cfg.NumWorkers))

	start := time.Now()
	results := make([]FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(p.cfg.NumWorkers)
	for i, file := range files {
		g.Go(func() error {
			results[i] = p.processFile(ctx, file)
			return nil
		})
	}
	// Workers never return an error, failures are recorded in results.
	_ = g.Wait()

	summary := Summary{Results: results}

	slog.Info("batch completed",
		slog.Int("files", len(results)),
		slog.Int("failed", len(summary.Failed())),
		slog.Duration("duration", time.Since(start)))

	if p.cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			return summary, err
		}
	}

	return summary, ctx.Err()
}

func (p *Processor) inputFiles() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	sameDir := filepath.Clean(p.cfg.InputDir) == filepath.Clean(p.cfg.OutputDir)

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, p.cfg.InputExt) {
			continue
		}
		// Skip previous outputs when writing next to the inputs.
		if sameDir && strings.HasSuffix(strings.TrimSuffix(name, ext), p.cfg.OutputSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.InputDir, name))
	}

	return files, nil
}

// outputPath returns the path of the file derived from input with the given
// extension, ext being the input's own extension for the cut video.
func (p *Processor) outputPath(input, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(p.cfg.OutputDir, base+p.cfg.OutputSuffix+ext)
}

func (p *Processor) processFile(ctx context.Context, input string) FileResult {
	start := time.Now()
	lc := newLifecycle(input)

	res := FileResult{
		Input:  input,
		Output: p.outputPath(input, filepath.Ext(input)),
	}

	if err := p.process(ctx, lc, &res); err != nil {
		res.Err = err
		if failErr := lc.event(ctx, eventFail); failErr != nil {
			slog.Error("failed to record failure", slog.String("err", failErr.Error()))
		}
		p.metrics.ObserveFile(metrics.StatusFailure)
		slog.Error("failed to process file", slog.String("file", input), slog.String("err", err.Error()))
	} else {
		p.metrics.ObserveFile(metrics.StatusSuccess)
		slog.Info("file processed",
			slog.String("file", input),
			slog.String("output", res.Output),
			slog.Int("segments", len(res.Segments)),
			slog.Duration("duration", time.Since(start)))
	}

	res.State = lc.current()
	p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())

	return res
}

func (p *Processor) process(ctx context.Context, lc *lifecycle, res *FileResult) error {
	if err := lc.event(ctx, eventProbe); err != nil {
		return err
	}
	fps, err := p.media.ProbeFrameRate(ctx, res.Input)
	if err != nil {
		return err
	}

	if err := lc.event(ctx, eventExtract); err != nil {
		return err
	}
	audioPath := filepath.Join(p.cfg.DataDir, uuid.NewString()+".wav")
	defer func() {
		if p.cfg.KeepAudio {
			slog.Debug("keeping extracted audio", slog.String("file", res.Input), slog.String("audio", audioPath))
			return
		}
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to remove extracted audio", slog.String("err", err.Error()))
		}
	}()
	if err := p.media.ExtractAudio(ctx, res.Input, audioPath, p.cfg.SampleRate); err != nil {
		return err
	}

	if err := lc.event(ctx, eventDetect); err != nil {
		return err
	}
	if err := p.detect(ctx, audioPath, res); err != nil {
		return err
	}

	var speechSecs float64
	for _, s := range res.Segments {
		speechSecs += s.Duration()
	}
	p.metrics.Segments.Add(float64(len(res.Segments)))
	p.metrics.SpeechSeconds.Add(speechSecs)
	p.metrics.VoicedSeconds.Add(res.VoicedDuration)
	p.metrics.InputAudioSeconds.Add(res.AudioDuration.Seconds())

	slog.Debug("speech detected",
		slog.String("file", res.Input),
		slog.Int("segments", len(res.Segments)),
		slog.Float64("speechSecs", speechSecs),
		slog.Float64("voicedSecs", res.VoicedDuration),
		slog.Duration("audio", res.AudioDuration))

	if p.cfg.ReportFormat != config.ReportFormatNone {
		if err := p.writeReport(res.Input, res.Segments); err != nil {
			return err
		}
	}

	if err := lc.event(ctx, eventCut); err != nil {
		return err
	}
	if err := p.media.Cut(ctx, res.Input, res.Output, res.Segments, fps); err != nil {
		return err
	}

	return lc.event(ctx, eventFinish)
}

func (p *Processor) detect(ctx context.Context, audioPath string, res *FileResult) error {
	pcm, err := audio.ReadWAV(audioPath)
	if err != nil {
		return fmt.Errorf("failed to read extracted audio: %w", err)
	}
	if pcm.SampleRate != p.cfg.SampleRate {
		return fmt.Errorf("unexpected sample rate %d, expected %d", pcm.SampleRate, p.cfg.SampleRate)
	}
	res.AudioDuration = pcm.Duration()

	oracle, err := p.newOracle(speech.Config{
		Detector:       p.cfg.Detector,
		Aggressiveness: p.cfg.Aggressiveness,
		SampleRate:     p.cfg.SampleRate,
		ModelPath:      p.cfg.ModelPath(),
	})
	if err != nil {
		return fmt.Errorf("failed to create speech detector: %w", err)
	}
	defer func() {
		if err := oracle.Close(); err != nil {
			slog.Error("failed to close speech detector", slog.String("err", err.Error()))
		}
	}()

	collector, err := vad.NewCollector(vad.Config{
		SampleRate:        p.cfg.SampleRate,
		FrameDurationMs:   p.cfg.FrameDurationMs,
		PaddingDurationMs: p.cfg.PaddingDurationMs,
	}, oracle)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	frames, err := vad.SliceFrames(pcm.Data, p.cfg.SampleRate, p.cfg.FrameDurationMs)
	if err != nil {
		return fmt.Errorf("failed to slice frames: %w", err)
	}

	for frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg, ok, err := collector.Push(frame)
		if err != nil {
			return fmt.Errorf("failed to collect segments: %w", err)
		}
		if ok {
			res.Segments = append(res.Segments, seg)
		}
	}
	if seg, ok := collector.Flush(); ok {
		res.Segments = append(res.Segments, seg)
	}
	res.VoicedDuration = collector.VoicedDuration()

	return nil
}

func (p *Processor) writeReport(input string, segments []vad.Segment) error {
	path := p.outputPath(input, p.cfg.ReportFormat.Ext())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()

	tl := report.NewTimeline(filepath.Base(input), segments)
	switch p.cfg.ReportFormat {
	case config.ReportFormatVTT:
		err = tl.WebVTT(f, p.cfg.OutputOptions.WebVTT)
	case config.ReportFormatText:
		err = tl.Text(f, p.cfg.OutputOptions.Text)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
