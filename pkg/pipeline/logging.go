package pipeline

import "github.com/sirupsen/logrus"

// Logger is the capability the pipeline needs for diagnostics. Kept as a
// small interface so callers can supply whatever structured logger their
// process already uses.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Default when no Logger is supplied.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// LogrusLogger adapts a *logrus.Logger to the Logger interface, pairing
// odd/even args into fields the way logrus.WithFields expects.
type LogrusLogger struct {
	L *logrus.Logger
}

// NewLogrusLogger builds a Logger backed by a sensibly-configured
// logrus.Logger (JSON in production, text otherwise is left to the
// caller — this just wires the field-pairing convention).
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusLogger{L: l}
}

func fields(args []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *LogrusLogger) Debug(msg string, args ...interface{}) {
	l.L.WithFields(fields(args)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, args ...interface{}) {
	l.L.WithFields(fields(args)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, args ...interface{}) {
	l.L.WithFields(fields(args)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, args ...interface{}) {
	l.L.WithFields(fields(args)).Error(msg)
}
