// Package logger holds the process-wide zap logger: a JSON file core rotated
// by lumberjack, optionally tee'd to a console core.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	logFile      *lumberjack.Logger
	mu           sync.Mutex
)

type options struct {
	console    io.Writer
	verbose    bool
	maxSizeMB  int
	maxBackups int
}

// Option configures Init.
type Option func(*options)

// WithConsole also writes human-readable logs to w.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithVerbose lowers the console level to debug. The file always gets debug.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// WithRotation sets the file size limit and number of rotated files kept.
func WithRotation(maxSizeMB, maxBackups int) Option {
	return func(o *options) {
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
	}
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string, opts ...Option) error {
	o := options{maxSizeMB: 20, maxBackups: 5}
	for _, opt := range opts {
		opt(&o)
	}

	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    o.maxSizeMB,
		MaxBackups: o.maxBackups,
	}
	// Open eagerly so a bad path fails here, not on first write.
	if _, err := f.Write(nil); err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zap.DebugLevel),
	}

	if o.console != nil {
		level := zap.InfoLevel
		if o.verbose {
			level = zap.DebugLevel
		}
		conCfg := encCfg
		conCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(conCfg), zapcore.AddSync(o.console), level))
	}

	logFile = f
	globalLogger = zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
		globalLogger = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// L returns the structured logger, a no-op logger before Init.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	L().Sugar().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	L().Sugar().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	L().Sugar().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	L().Sugar().Warnf(format, v...)
}

// GetWriter returns the underlying log file for raw output, io.Discard
// before Init.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
