package logger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitWithWriterTextFormat(t *testing.T) {
	var buf strings.Builder
	InitWithWriter(&buf, "DEBUG", "text", false)

	Info("commit attempt started", KeyVersion, 3, KeyAttempt, 1)

	out := buf.String()
	require.Contains(t, out, "[INFO]")
	require.Contains(t, out, "commit attempt started")
	require.Contains(t, out, "version=3")
	require.Contains(t, out, "attempt=1")
}

func TestInitWithWriterJSONFormat(t *testing.T) {
	var buf strings.Builder
	InitWithWriter(&buf, "INFO", "json", false)

	Info("committed", KeyVersion, 5)

	out := buf.String()
	require.Contains(t, out, `"msg":"committed"`)
	require.Contains(t, out, `"version":5`)
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf strings.Builder
	InitWithWriter(&buf, "DEBUG", "text", false)
	SetLevel("WARN")

	Debug("should not appear")
	Info("should not appear either")
	Warn("this one should appear")

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "this one should appear")
}

func TestSetLevelIgnoresInvalidValue(t *testing.T) {
	var buf strings.Builder
	InitWithWriter(&buf, "INFO", "text", false)
	SetLevel("NOT_A_LEVEL")

	Info("still logs at info")
	require.Contains(t, buf.String(), "still logs at info")
}

func TestSetFormatIgnoresInvalidValue(t *testing.T) {
	var buf strings.Builder
	InitWithWriter(&buf, "INFO", "text", false)
	SetFormat("yaml")

	Info("still text")
	require.Contains(t, buf.String(), "[INFO]")
}

func TestWithBindsAttributes(t *testing.T) {
	var buf strings.Builder
	InitWithWriter(&buf, "INFO", "text", false)

	With(KeyClientID, "abc123").Info("two-phase commit started")
	require.Contains(t, buf.String(), "client_id=abc123")
}

func TestDurationReportsMilliseconds(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)
	d := Duration(start)
	require.GreaterOrEqual(t, d, 45.0)
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.Equal(t, "INFO", LevelInfo.String())
	require.Equal(t, "WARN", LevelWarn.String())
	require.Equal(t, "ERROR", LevelError.String())
	require.Equal(t, "UNKNOWN", Level(99).String())
}
