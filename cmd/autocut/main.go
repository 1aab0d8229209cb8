package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		if source.File == "" {
			// Log from a dependency.
			if pc, file, line, ok := runtime.Caller(7); ok {
				if f := runtime.FuncForPC(pc); f != nil {
					source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
					source.Line = line
				}
			}
		} else {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func logLevel() slog.Level {
	level := slog.LevelDebug
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		if err := level.UnmarshalText([]byte(val)); err != nil {
			level = slog.LevelDebug
		}
	}
	return level
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       logLevel(),
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("autocut failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
