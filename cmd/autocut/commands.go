package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattermost/calls-autocut/cmd/autocut/audio"
	"github.com/mattermost/calls-autocut/cmd/autocut/config"
	"github.com/mattermost/calls-autocut/cmd/autocut/job"
	"github.com/mattermost/calls-autocut/cmd/autocut/media"
	"github.com/mattermost/calls-autocut/cmd/autocut/metrics"
	"github.com/mattermost/calls-autocut/cmd/autocut/speech"
	"github.com/mattermost/calls-autocut/cmd/autocut/vad"

	"github.com/spf13/cobra"
)

type cliFlags struct {
	configFile     string
	inputDir       string
	outputDir      string
	detector       string
	aggressiveness int
	workers        int
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:   "autocut",
		Short: "Cut the silent parts out of every video in a directory",
		Long: `autocut extracts the audio track of every video found in the input
directory, detects the speech segments and writes a copy of the video
containing only those segments to the output directory.

Configuration is read from the environment, then from the optional YAML
file and finally from the command line flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.IsValid(); err != nil {
				return fmt.Errorf("failed to validate config: %w", err)
			}
			return runBatch(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.detector, "detector", "", "speech detector (webrtc, energy, silero)")
	root.PersistentFlags().IntVar(&flags.aggressiveness, "aggressiveness", config.AggressivenessDefault, "speech filtering aggressiveness [0, 3]")
	root.Flags().StringVar(&flags.inputDir, "input-dir", "", "directory containing the input videos")
	root.Flags().StringVar(&flags.outputDir, "output-dir", "", "directory the cut videos are written to")
	root.Flags().IntVar(&flags.workers, "workers", 0, "number of files processed in parallel")

	root.AddCommand(newSegmentsCmd(&flags))

	return root
}

func newSegmentsCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "segments FILE.wav",
		Short: "Print the speech segments detected in a mono 16-bit WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *flags)
			if err != nil {
				return err
			}
			return printSegments(cmd, cfg, args[0])
		},
	}
}

// loadConfig layers the environment, the config file and the flags explicitly
// set on the command line, in this order.
func loadConfig(cmd *cobra.Command, flags cliFlags) (config.AutocutConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.configFile != "" {
		if err := cfg.FromFile(flags.configFile); err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
	}

	fs := cmd.Flags()
	if fs.Changed("input-dir") {
		cfg.InputDir = flags.inputDir
	}
	if fs.Changed("output-dir") {
		cfg.OutputDir = flags.outputDir
	}
	if fs.Changed("detector") {
		cfg.Detector = speech.DetectorType(flags.detector)
	}
	if fs.Changed("aggressiveness") {
		cfg.Aggressiveness = flags.aggressiveness
	}
	if fs.Changed("workers") {
		cfg.NumWorkers = flags.workers
	}

	cfg.SetDefaults()

	return cfg, nil
}

func runBatch(ctx context.Context, cfg config.AutocutConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ff := media.NewFFmpeg(media.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
	}, nil)

	p, err := job.NewProcessor(cfg, ff, metrics.New())
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to run batch: %w", err)
	}

	if failed := summary.Failed(); len(failed) > 0 {
		for _, r := range failed {
			slog.Error("file failed", slog.String("file", r.Input), slog.String("err", r.Err.Error()))
		}
		return fmt.Errorf("%d of %d files failed", len(failed), len(summary.Results))
	}

	slog.Info("all files processed", slog.Int("files", len(summary.Results)))

	return nil
}

func printSegments(cmd *cobra.Command, cfg config.AutocutConfig, path string) error {
	pcm, err := audio.ReadWAV(path)
	if err != nil {
		return err
	}
	if err := pcm.IsValid(); err != nil {
		return fmt.Errorf("unsupported audio: %w", err)
	}

	oracle, err := speech.New(speech.Config{
		Detector:       cfg.Detector,
		Aggressiveness: cfg.Aggressiveness,
		SampleRate:     pcm.SampleRate,
		ModelPath:      cfg.ModelPath(),
	})
	if err != nil {
		return fmt.Errorf("failed to create speech detector: %w", err)
	}
	defer func() {
		if err := oracle.Close(); err != nil {
			slog.Error("failed to close speech detector", slog.String("err", err.Error()))
		}
	}()

	frames, err := vad.SliceFrames(pcm.Data, pcm.SampleRate, cfg.FrameDurationMs)
	if err != nil {
		return fmt.Errorf("failed to slice frames: %w", err)
	}

	segments, err := vad.CollectSegments(vad.Config{
		SampleRate:        pcm.SampleRate,
		FrameDurationMs:   cfg.FrameDurationMs,
		PaddingDurationMs: cfg.PaddingDurationMs,
	}, oracle, frames)
	if err != nil {
		return fmt.Errorf("failed to collect segments: %w", err)
	}

	out := cmd.OutOrStdout()
	for seg, err := range segments {
		if err != nil {
			return fmt.Errorf("failed to collect segments: %w", err)
		}
		if _, err := fmt.Fprintf(out, "%.3f\t%.3f\n", seg.Start, seg.End); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
