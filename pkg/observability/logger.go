package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger builds a logrus logger from the configured level and format.
// Unknown values fall back to info/text so a typo in deployment config
// degrades verbosity, not the process.
func NewLogger(level, format string) *logrus.Logger {
	return newLoggerTo(os.Stdout, level, format)
}

func newLoggerTo(out io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// WithTrace annotates a log entry with the active span's trace and span
// ids so log lines can be joined to traces. Returns a plain entry when no
// span is recording.
func WithTrace(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return logrus.NewEntry(logger)
	}
	spanCtx := span.SpanContext()
	return logger.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}
