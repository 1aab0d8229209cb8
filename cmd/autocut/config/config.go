package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/mattermost/calls-autocut/cmd/autocut/report"
	"github.com/mattermost/calls-autocut/cmd/autocut/speech"

	"gopkg.in/yaml.v3"
)

const (
	// defaults
	InputExtDefault          = ".mp4"
	OutputSuffixDefault      = "_cut"
	OutputDirNameDefault     = "auto_cut_videos"
	ModelsDirDefault         = "/models"
	DetectorDefault          = speech.DetectorWebRTC
	AggressivenessDefault    = speech.AggressivenessMax
	SampleRateDefault        = 16000
	FrameDurationMsDefault   = 30
	PaddingDurationMsDefault = 300
	ReportFormatDefault      = ReportFormatNone
	FFmpegPathDefault        = "ffmpeg"
	FFprobePathDefault       = "ffprobe"

	sileroModelFile = "silero_vad.onnx"
)

var webrtcSampleRates = []int{8000, 16000, 32000, 48000}

type ReportFormat string

const (
	ReportFormatNone ReportFormat = "none"
	ReportFormatVTT  ReportFormat = "vtt"
	ReportFormatText ReportFormat = "text"
)

func (f ReportFormat) IsValid() bool {
	switch f {
	case ReportFormatNone, ReportFormatVTT, ReportFormatText:
		return true
	default:
		return false
	}
}

// Ext returns the file extension of the sidecar report.
func (f ReportFormat) Ext() string {
	switch f {
	case ReportFormatVTT:
		return ".vtt"
	case ReportFormatText:
		return ".txt"
	default:
		return ""
	}
}

type OutputOptions struct {
	WebVTT report.WebVTTOptions
	Text   report.TextOptions
}

type AutocutConfig struct {
	// input config
	InputDir string
	InputExt string
	DataDir  string

	// detection config
	ModelsDir         string
	Detector          speech.DetectorType
	Aggressiveness    int
	SampleRate        int
	FrameDurationMs   int
	PaddingDurationMs int
	NumWorkers        int

	// output config
	OutputDir     string
	OutputSuffix  string
	KeepAudio     bool
	ReportFormat  ReportFormat
	OutputOptions OutputOptions
	MetricsFile   string

	// tools
	FFmpegPath  string
	FFprobePath string
}

// ModelPath returns the location of the silero ONNX model.
func (cfg AutocutConfig) ModelPath() string {
	return filepath.Join(cfg.ModelsDir, sileroModelFile)
}

func (cfg AutocutConfig) IsValid() error {
	if cfg == (AutocutConfig{}) {
		return fmt.Errorf("config cannot be empty")
	}
	if cfg.InputDir == "" {
		return fmt.Errorf("InputDir cannot be empty")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("OutputDir cannot be empty")
	}
	if !strings.HasPrefix(cfg.InputExt, ".") || len(cfg.InputExt) < 2 {
		return fmt.Errorf("InputExt value is not valid")
	}
	if cfg.OutputSuffix == "" && filepath.Clean(cfg.OutputDir) == filepath.Clean(cfg.InputDir) {
		return fmt.Errorf("OutputSuffix cannot be empty when OutputDir is InputDir")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("DataDir cannot be empty")
	}
	if !cfg.Detector.IsValid() {
		return fmt.Errorf("Detector value is not valid")
	}
	if cfg.Detector == speech.DetectorSilero && cfg.ModelsDir == "" {
		return fmt.Errorf("ModelsDir cannot be empty")
	}
	if cfg.Aggressiveness < speech.AggressivenessMin || cfg.Aggressiveness > speech.AggressivenessMax {
		return fmt.Errorf("Aggressiveness should be in the range [%d, %d]", speech.AggressivenessMin, speech.AggressivenessMax)
	}
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("SampleRate should be a positive number")
	}
	if cfg.Detector == speech.DetectorWebRTC && !slices.Contains(webrtcSampleRates, cfg.SampleRate) {
		return fmt.Errorf("SampleRate should be one of %v with the webrtc detector", webrtcSampleRates)
	}
	if cfg.FrameDurationMs <= 0 {
		return fmt.Errorf("FrameDurationMs should be a positive number")
	}
	if cfg.PaddingDurationMs < 0 {
		return fmt.Errorf("PaddingDurationMs should not be negative")
	}
	if numCPU := runtime.NumCPU(); cfg.NumWorkers < 1 || cfg.NumWorkers > numCPU {
		return fmt.Errorf("NumWorkers should be in the range [1, %d]", numCPU)
	}
	if !cfg.ReportFormat.IsValid() {
		return fmt.Errorf("ReportFormat value is not valid")
	}
	if cfg.FFmpegPath == "" {
		return fmt.Errorf("FFmpegPath cannot be empty")
	}
	if cfg.FFprobePath == "" {
		return fmt.Errorf("FFprobePath cannot be empty")
	}

	return cfg.OutputOptions.Text.IsValid()
}

// SetDefaults fills unset fields. Aggressiveness and PaddingDurationMs are
// left alone since zero is a meaningful value for both: their defaults are
// applied by FromEnv when the variables are unset.
func (cfg *AutocutConfig) SetDefaults() {
	if cfg.OutputDir == "" && cfg.InputDir != "" {
		cfg.OutputDir = filepath.Join(cfg.InputDir, OutputDirNameDefault)
	}

	if cfg.InputExt == "" {
		cfg.InputExt = InputExtDefault
	}

	if cfg.OutputSuffix == "" {
		cfg.OutputSuffix = OutputSuffixDefault
	}

	if cfg.DataDir == "" {
		cfg.DataDir = os.TempDir()
	}

	if cfg.ModelsDir == "" {
		cfg.ModelsDir = ModelsDirDefault
	}

	if cfg.Detector == "" {
		cfg.Detector = DetectorDefault
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRateDefault
	}

	if cfg.FrameDurationMs == 0 {
		cfg.FrameDurationMs = FrameDurationMsDefault
	}

	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = max(1, runtime.NumCPU()/2)
	}

	if cfg.ReportFormat == "" {
		cfg.ReportFormat = ReportFormatDefault
	}

	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = FFmpegPathDefault
	}

	if cfg.FFprobePath == "" {
		cfg.FFprobePath = FFprobePathDefault
	}

	if cfg.OutputOptions.Text == (report.TextOptions{}) {
		cfg.OutputOptions.Text.SetDefaults()
	}
}

func (cfg AutocutConfig) ToEnv() []string {
	if cfg == (AutocutConfig{}) {
		return nil
	}

	vars := []string{
		fmt.Sprintf("INPUT_DIR=%s", cfg.InputDir),
		fmt.Sprintf("INPUT_EXT=%s", cfg.InputExt),
		fmt.Sprintf("DATA_DIR=%s", cfg.DataDir),
		fmt.Sprintf("MODELS_DIR=%s", cfg.ModelsDir),
		fmt.Sprintf("DETECTOR=%s", cfg.Detector),
		fmt.Sprintf("AGGRESSIVENESS=%d", cfg.Aggressiveness),
		fmt.Sprintf("SAMPLE_RATE=%d", cfg.SampleRate),
		fmt.Sprintf("FRAME_DURATION_MS=%d", cfg.FrameDurationMs),
		fmt.Sprintf("PADDING_DURATION_MS=%d", cfg.PaddingDurationMs),
		fmt.Sprintf("NUM_WORKERS=%d", cfg.NumWorkers),
		fmt.Sprintf("OUTPUT_DIR=%s", cfg.OutputDir),
		fmt.Sprintf("OUTPUT_SUFFIX=%s", cfg.OutputSuffix),
		fmt.Sprintf("KEEP_AUDIO=%t", cfg.KeepAudio),
		fmt.Sprintf("REPORT_FORMAT=%s", cfg.ReportFormat),
		fmt.Sprintf("METRICS_FILE=%s", cfg.MetricsFile),
		fmt.Sprintf("FFMPEG_PATH=%s", cfg.FFmpegPath),
		fmt.Sprintf("FFPROBE_PATH=%s", cfg.FFprobePath),
		fmt.Sprintf("WEBVTT_OMIT_SOURCE=%t", cfg.OutputOptions.WebVTT.OmitSource),
		fmt.Sprintf("TEXT_MERGE_GAP_MS=%d", cfg.OutputOptions.Text.MergeGapMs),
		fmt.Sprintf("TEXT_MAX_SPAN_MS=%d", cfg.OutputOptions.Text.MaxSpanMs),
	}

	return vars
}

func (cfg AutocutConfig) ToMap() map[string]any {
	if cfg == (AutocutConfig{}) {
		return nil
	}

	m := map[string]any{
		"input_dir":           cfg.InputDir,
		"input_ext":           cfg.InputExt,
		"data_dir":            cfg.DataDir,
		"models_dir":          cfg.ModelsDir,
		"detector":            cfg.Detector,
		"aggressiveness":      cfg.Aggressiveness,
		"sample_rate":         cfg.SampleRate,
		"frame_duration_ms":   cfg.FrameDurationMs,
		"padding_duration_ms": cfg.PaddingDurationMs,
		"num_workers":         cfg.NumWorkers,
		"output_dir":          cfg.OutputDir,
		"output_suffix":       cfg.OutputSuffix,
		"keep_audio":          cfg.KeepAudio,
		"report_format":       cfg.ReportFormat,
		"metrics_file":        cfg.MetricsFile,
		"ffmpeg_path":         cfg.FFmpegPath,
		"ffprobe_path":        cfg.FFprobePath,
		"webvtt_omit_source":  cfg.OutputOptions.WebVTT.OmitSource,
		"text_merge_gap_ms":   cfg.OutputOptions.Text.MergeGapMs,
		"text_max_span_ms":    cfg.OutputOptions.Text.MaxSpanMs,
	}

	return m
}

// FromMap overrides the fields whose keys are present in m, so that it can be
// layered on top of a config loaded from the environment.
func (cfg *AutocutConfig) FromMap(m map[string]any) *AutocutConfig {
	setString(m, "input_dir", &cfg.InputDir)
	setString(m, "input_ext", &cfg.InputExt)
	setString(m, "data_dir", &cfg.DataDir)
	setString(m, "models_dir", &cfg.ModelsDir)
	setString(m, "output_dir", &cfg.OutputDir)
	setString(m, "output_suffix", &cfg.OutputSuffix)
	setString(m, "metrics_file", &cfg.MetricsFile)
	setString(m, "ffmpeg_path", &cfg.FFmpegPath)
	setString(m, "ffprobe_path", &cfg.FFprobePath)

	setInt(m, "aggressiveness", &cfg.Aggressiveness)
	setInt(m, "sample_rate", &cfg.SampleRate)
	setInt(m, "frame_duration_ms", &cfg.FrameDurationMs)
	setInt(m, "padding_duration_ms", &cfg.PaddingDurationMs)
	setInt(m, "num_workers", &cfg.NumWorkers)
	setInt(m, "text_merge_gap_ms", &cfg.OutputOptions.Text.MergeGapMs)
	setInt(m, "text_max_span_ms", &cfg.OutputOptions.Text.MaxSpanMs)

	setBool(m, "keep_audio", &cfg.KeepAudio)
	setBool(m, "webvtt_omit_source", &cfg.OutputOptions.WebVTT.OmitSource)

	switch v := m["detector"].(type) {
	case string:
		cfg.Detector = speech.DetectorType(v)
	case speech.DetectorType:
		cfg.Detector = v
	}

	switch v := m["report_format"].(type) {
	case string:
		cfg.ReportFormat = ReportFormat(v)
	case ReportFormat:
		cfg.ReportFormat = v
	}

	return cfg
}

func setString(m map[string]any, key string, dst *string) {
	if v, ok := m[key].(string); ok {
		*dst = v
	}
}

func setBool(m map[string]any, key string, dst *bool) {
	if v, ok := m[key].(bool); ok {
		*dst = v
	}
}

func setInt(m map[string]any, key string, dst *int) {
	// Numbers can either be int or float64 depending on whether they've been
	// previously marshaled or not.
	switch v := m[key].(type) {
	case int:
		*dst = v
	case float64:
		*dst = int(v)
	}
}

// FromFile overrides cfg with the values found in the YAML file at path.
func (cfg *AutocutConfig) FromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.FromMap(m)

	return nil
}

func FromEnv() (AutocutConfig, error) {
	var cfg AutocutConfig
	cfg.InputDir = os.Getenv("INPUT_DIR")
	cfg.InputExt = os.Getenv("INPUT_EXT")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.ModelsDir = os.Getenv("MODELS_DIR")
	cfg.OutputDir = os.Getenv("OUTPUT_DIR")
	cfg.OutputSuffix = os.Getenv("OUTPUT_SUFFIX")
	cfg.MetricsFile = os.Getenv("METRICS_FILE")
	cfg.FFmpegPath = os.Getenv("FFMPEG_PATH")
	cfg.FFprobePath = os.Getenv("FFPROBE_PATH")
	cfg.SampleRate, _ = strconv.Atoi(os.Getenv("SAMPLE_RATE"))
	cfg.FrameDurationMs, _ = strconv.Atoi(os.Getenv("FRAME_DURATION_MS"))
	cfg.NumWorkers, _ = strconv.Atoi(os.Getenv("NUM_WORKERS"))
	cfg.KeepAudio, _ = strconv.ParseBool(os.Getenv("KEEP_AUDIO"))
	cfg.OutputOptions.WebVTT.OmitSource, _ = strconv.ParseBool(os.Getenv("WEBVTT_OMIT_SOURCE"))
	cfg.OutputOptions.Text.MergeGapMs, _ = strconv.Atoi(os.Getenv("TEXT_MERGE_GAP_MS"))
	cfg.OutputOptions.Text.MaxSpanMs, _ = strconv.Atoi(os.Getenv("TEXT_MAX_SPAN_MS"))

	cfg.Aggressiveness = AggressivenessDefault
	if val := os.Getenv("AGGRESSIVENESS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse AGGRESSIVENESS: %w", err)
		}
		cfg.Aggressiveness = n
	}

	cfg.PaddingDurationMs = PaddingDurationMsDefault
	if val := os.Getenv("PADDING_DURATION_MS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse PADDING_DURATION_MS: %w", err)
		}
		cfg.PaddingDurationMs = n
	}

	if val := os.Getenv("DETECTOR"); val != "" {
		cfg.Detector = speech.DetectorType(val)
	}

	if val := os.Getenv("REPORT_FORMAT"); val != "" {
		cfg.ReportFormat = ReportFormat(val)
	}

	return cfg, nil
}
