package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(NewCLIHandler(&buf, level)), &buf
}

func TestCLIHandler_LevelColors(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		color string
		msg   string
	}{
		{
			name:  "info",
			log:   func(l *slog.Logger) { l.Info("weight saved", "weight", 0.8) },
			color: colorGreen,
			msg:   "weight saved: weight=0.8",
		},
		{
			name:  "warn",
			log:   func(l *slog.Logger) { l.Warn("keychain unavailable, falling back to file") },
			color: colorYellow,
			msg:   "keychain unavailable, falling back to file",
		},
		{
			name:  "error",
			log:   func(l *slog.Logger) { l.Error("server error", "error", errors.New("bind: address in use")) },
			color: colorRed,
			msg:   "server error: error=bind: address in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(slog.LevelInfo)
			tt.log(logger)
			assert.Equal(t, tt.color+tt.msg+colorReset+"\n", buf.String())
		})
	}
}

func TestCLIHandler_DebugHiddenUnlessEnabled(t *testing.T) {
	logger, buf := newTestLogger(slog.LevelInfo)
	logger.Debug("records rescored", "records", 3)
	assert.Zero(t, buf.Len())

	logger, buf = newTestLogger(ParseLogLevel("debug"))
	logger.Debug("records rescored", "hypothesis", "IPS/Q1/prog", "old", 0.5, "new", 0.9, "records", 3)
	assert.Contains(t, buf.String(), "records rescored: hypothesis=IPS/Q1/prog old=0.5 new=0.9 records=3")
}

func TestCLIHandler_AttrsAndGroup(t *testing.T) {
	logger, buf := newTestLogger(slog.LevelInfo)

	logger.With("profile", "default").WithGroup("store").Info("weight overrides cleared", "count", 2)
	assert.Contains(t, buf.String(), "[store] weight overrides cleared: profile=default count=2")

	// empty attrs keep the handler
	h := NewCLIHandler(buf, slog.LevelInfo)
	assert.Same(t, h, h.WithAttrs(nil))

	buf.Reset()
	slog.New(h.WithGroup("")).Info("no prefix")
	assert.Equal(t, colorGreen+"no prefix"+colorReset+"\n", buf.String())
}

type redacted string

func (redacted) LogValue() slog.Value {
	return slog.StringValue("***")
}

func TestCLIHandler_ResolvesLogValuer(t *testing.T) {
	logger, buf := newTestLogger(slog.LevelInfo)
	logger.Info("token saved", "token", redacted("gho_secret"))

	assert.Contains(t, buf.String(), "token=***")
	assert.NotContains(t, buf.String(), "gho_secret")
}

func TestSetDefaultCLILogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	SetDefaultCLILogger("warn")

	l := slog.Default()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, l.Enabled(t.Context(), slog.LevelWarn))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"  DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}
