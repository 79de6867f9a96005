package telemetry

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Debug bool `json:"debug"`
	// when set, log lines are additionally written to this file with
	// size-based rotation
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// InitSlog installs the process-wide slog handler. Cycle progress and
// error lines end up both on stderr and, when configured, in a rotating
// log file.
func InitSlog(config LogConfig) {
	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if config.File != "" {
		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 1
		}
		maxBackups := config.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})))
}
