package sisapi

import (
	"go.uber.org/zap"
)

// Logger is the structured logging interface consumed by the client.
// Every call takes a message and a structured context map. Critical
// marks failures severe enough to halt a batch job, such as a server
// quota stop; the library only logs them and returns a typed error,
// leaving the decision to exit to the caller.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Critical(msg string, fields map[string]interface{})
}

// NoopLogger discards all log output. It is the default when no logger
// is configured.
type NoopLogger struct{}

func (NoopLogger) Debug(msg string, fields map[string]interface{})    {}
func (NoopLogger) Info(msg string, fields map[string]interface{})     {}
func (NoopLogger) Warn(msg string, fields map[string]interface{})     {}
func (NoopLogger) Error(msg string, fields map[string]interface{})    {}
func (NoopLogger) Critical(msg string, fields map[string]interface{}) {}

// ZapLogger adapts a zap.Logger to the Logger interface.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// NewDevelopmentLogger builds a zap development logger adapter, handy
// for examples and debugging.
func NewDevelopmentLogger() (*ZapLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger}, nil
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, zapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, zapFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, zapFields(fields)...)
}

// Critical logs at error level with a critical marker. The library
// never exits the process on behalf of its caller.
func (l *ZapLogger) Critical(msg string, fields map[string]interface{}) {
	zf := append(zapFields(fields), zap.Bool("critical", true))
	l.logger.Error(msg, zf...)
}

func zapFields(fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zf = append(zf, zap.Any(key, value))
	}

	return zf
}
