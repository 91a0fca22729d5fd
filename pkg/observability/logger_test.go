package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_LevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{"debug", "debug", logrus.DebugLevel},
		{"info", "info", logrus.InfoLevel},
		{"warn", "warn", logrus.WarnLevel},
		{"error", "error", logrus.ErrorLevel},
		{"mixed case", "DEBUG", logrus.DebugLevel},
		{"unknown falls back to info", "verbose", logrus.InfoLevel},
		{"empty falls back to info", "", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.level, "text")
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, "info", "json")

	logger.WithField("org_id", "org-1").Info("Organization created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Organization created", line["msg"])
	assert.Equal(t, "org-1", line["org_id"])
	assert.Equal(t, "info", line["level"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, "info", "text")

	logger.Info("started")

	assert.Contains(t, buf.String(), "started")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestWithTrace_NoSpan(t *testing.T) {
	logger := NewLogger("info", "text")

	entry := WithTrace(context.Background(), logger)

	assert.NotContains(t, entry.Data, "trace_id")
	assert.NotContains(t, entry.Data, "span_id")
}
