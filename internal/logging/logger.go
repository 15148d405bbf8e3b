// Package logging builds the zap logger used across batterylens, with
// optional rotating file output via lumberjack.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sanspareilsmyn/batterylens/internal/config"
)

// NewLogger initializes a zap logger based on the provided configuration,
// supporting both console and rotating file output.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %v, defaulting to INFO level\n", err)
		level = zapcore.InfoLevel
	}

	isConsole := strings.ToLower(cfg.Format) == "console"

	var cores []zapcore.Core
	if isConsole {
		cores = append(cores, consoleCores(level)...)
	}
	if cfg.FileLoggingEnabled {
		fc, err := fileCore(cfg, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fc)
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("no logging outputs configured (neither console nor file enabled)")
	}

	combined := cores[0]
	if len(cores) > 1 {
		combined = zapcore.NewTee(cores...)
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}
	if level == zapcore.DebugLevel || isConsole {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(combined, opts...), nil
}

// consoleCores splits console output: configured level through warn on
// stdout, error and above on stderr.
func consoleCores(level zapcore.Level) []zapcore.Core {
	encoder := buildEncoder(true)
	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	infoCore := zapcore.NewCore(encoder, stdout, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl < zapcore.ErrorLevel
	}))
	errorCore := zapcore.NewCore(encoder, stderr, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl >= zapcore.ErrorLevel
	}))
	return []zapcore.Core{infoCore, errorCore}
}

// fileCore writes JSON logs to a lumberjack-rotated file.
func fileCore(cfg config.LogConfig, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory '%s': %w", cfg.Directory, err)
	}

	ljack := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, cfg.Filename),
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxBackups: cfg.MaxBackups, // files
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,
	}
	return zapcore.NewCore(buildEncoder(false), zapcore.AddSync(ljack), level), nil
}

func parseLevel(levelStr string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(levelStr))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level '%s'", levelStr)
	}
	return level, nil
}

func buildEncoder(useConsoleStyle bool) zapcore.Encoder {
	if useConsoleStyle {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
