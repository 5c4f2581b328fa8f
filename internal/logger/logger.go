// Package logger owns the process-wide zap logger: a console core on
// stderr, optionally teed into a size-rotated JSON file for long imports.
package logger

import (
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.Logger
	once sync.Once
)

// Init sets up console-only logging. Verbose lowers the level to Debug,
// which is where the decoder reports its block and worker counts at start.
func Init(verbose bool) {
	once.Do(func() {
		base = build(verbose, "")
	})
}

// InitWithFile additionally tees every entry into a rotated JSON log file.
func InitWithFile(verbose bool, path string) {
	once.Do(func() {
		base = build(verbose, path)
	})
}

func build(verbose bool, filePath string) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	// Lock stderr: handlers run on decode workers, so log writes are
	// concurrent by construction.
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	if filePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    100, // MB per file before rolling
			MaxBackups: 3,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotated),
			level,
		)
		core = zapcore.NewTee(core, fileCore)
	}

	return zap.New(core)
}

// Get returns the global logger, initializing a quiet console one if no
// Init ran first.
func Get() *zap.Logger {
	if base == nil {
		Init(false)
	}
	return base
}

// Decoder returns the named logger handed to the input library; its worker
// goroutines log through it concurrently.
func Decoder() *zap.Logger {
	return Get().Named("decode")
}

// Sync flushes any buffered log entries
func Sync() {
	if base != nil {
		base.Sync()
	}
}
