// Package logger builds the zap logger used across the pipeline.
package logger

import (
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	config "github.com/crabzie/RabbitMQ-Task-Pipeline/config/utils"
)

// atomicLevel gates the non-error cores and can be changed at runtime.
var atomicLevel zap.AtomicLevel

// Build sets up the base logger: info and below to stdout, errors to stderr,
// with the level reloadable through the watched config file.
func Build(cfg *config.Logger) *zap.Logger {
	lvl, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		log.Fatalf("Couldn't parse initial atomic level at logger build: %v", err)
	}
	atomicLevel = lvl

	encoder := zapcore.NewJSONEncoder(cfg.EncoderConfig)
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}

	highPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return atomicLevel.Enabled(l) && l < zapcore.ErrorLevel
	})

	infoCore := zapcore.NewCore(encoder, os.Stdout, lowPriority)
	errorCore := zapcore.NewCore(encoder, os.Stderr, highPriority)

	logger := zap.New(zapcore.NewTee(infoCore, errorCore), zap.AddCaller())
	zap.ReplaceGlobals(logger)

	viper.OnConfigChange(func(in fsnotify.Event) {
		if in.Op&(fsnotify.Create) == 0 {
			SetLevel(viper.GetString("logger.level"))
		}
	})
	viper.WatchConfig()

	return logger
}

// SetLevel changes the logger level dynamically.
func SetLevel(level string) {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		zap.L().Error("Couldn't parse level", zap.Error(err))
		return
	}
	zap.L().Info("Atomic level updated", zap.String("value", level))
	atomicLevel.SetLevel(l)
}
