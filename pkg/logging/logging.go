package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger with helpers for the inference layer.
type Logger struct {
	zap *zap.Logger
}

// Config holds logging configuration.
type Config struct {
	Level     string
	Format    string // "json" or "console"
	Output    string // "stdout" or "stderr"
	AddCaller bool
}

// NewLogger creates a new structured logger.
func NewLogger(config Config) (*Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = parseLevel(config.Level)
	if config.Format != "" {
		zapConfig.Encoding = config.Format
	}
	if config.Output != "" {
		zapConfig.OutputPaths = []string{config.Output}
		zapConfig.ErrorOutputPaths = []string{config.Output}
	}
	zapConfig.DisableCaller = !config.AddCaller
	zapConfig.DisableStacktrace = true

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{zap: zapLogger}, nil
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func parseLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// WithRequestID returns a logger with a request ID field attached.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("request_id", requestID))}
}

// WithProject returns a logger with a project field attached.
func (l *Logger) WithProject(project string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("project", project))}
}

// With returns a logger with arbitrary fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// LogInference logs one completed inference call.
func (l *Logger) LogInference(provider, model, status string, duration time.Duration, tokens int, cost float64, requestID string) {
	l.zap.Info("inference completed",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("status", status),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
		zap.Int("tokens", tokens),
		zap.Float64("cost", cost),
		zap.String("request_id", requestID),
	)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// GetZap returns the underlying zap logger.
func (l *Logger) GetZap() *zap.Logger {
	return l.zap
}
