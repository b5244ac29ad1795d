package logs

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrUnknownFormat is returned when a log format is not text or json
var ErrUnknownFormat = errors.New("unknown log format")

type logrusFields logrus.Fields

func (f logrusFields) Add(key string, value interface{}) {
	f[key] = value
}

// LogrusLoggerProperties configure a Logger backed by logrus
type LogrusLoggerProperties struct {
	// Level is the minimum level of the entries written
	Level logrus.Level

	// Output receives the entries. Defaults to os.Stderr
	Output io.Writer

	// Formatter renders the entries. Defaults to a logrus.TextFormatter
	Formatter logrus.Formatter
}

// LogrusLogger implements Logger on top of a logrus logger
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus creates a new Logger that writes through logrus
func NewLogrus(props LogrusLoggerProperties) *LogrusLogger {
	output := props.Output
	if output == nil {
		output = os.Stderr
	}

	formatter := props.Formatter
	if formatter == nil {
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	logger := logrus.New()
	logger.SetLevel(props.Level)
	logger.SetOutput(output)
	logger.SetFormatter(formatter)

	return &LogrusLogger{entry: logrus.NewEntry(logger)}
}

// ParseFormatter returns the logrus formatter for format, which can
// be "text" or "json"
func ParseFormatter(format string) (logrus.Formatter, error) {
	switch format {
	case "", "text":
		return &logrus.TextFormatter{FullTimestamp: true}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

func (l *LogrusLogger) with(ctx context.Context, loggables []Loggable) *logrus.Entry {
	fields := make(logrusFields, len(loggables)+1)
	if id := GetTraceID(ctx); id != 0 {
		fields.Add("trace_id", id)
	}

	for _, loggable := range loggables {
		if loggable != nil {
			loggable.Log(fields)
		}
	}

	return l.entry.WithFields(logrus.Fields(fields))
}

func (l *LogrusLogger) Debug(ctx context.Context, msg string, loggables ...Loggable) {
	if l.entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		l.with(ctx, loggables).Debug(msg)
	}
}

func (l *LogrusLogger) Info(ctx context.Context, msg string, loggables ...Loggable) {
	l.with(ctx, loggables).Info(msg)
}

func (l *LogrusLogger) Warn(ctx context.Context, msg string, loggables ...Loggable) {
	l.with(ctx, loggables).Warn(msg)
}

func (l *LogrusLogger) Error(ctx context.Context, msg string, loggables ...Loggable) {
	l.with(ctx, loggables).Error(msg)
}

func (l *LogrusLogger) ForClass(pkg string, class string) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields{
		"package": pkg,
		"class":   class,
	})}
}
