package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLoggerJSONFormat(t *testing.T) {
	t.Setenv("CAPMATCH_LOG_FORMAT", "json")
	t.Setenv("CAPMATCH_LOG_LEVEL", "DEBUG")

	logger := NewStructuredLogger("capmatch-test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("Capability matched", map[string]interface{}{
		"operation":     "match",
		"capability_id": "qbr_deck",
		"confidence":    0.55,
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "capmatch-test", entry["service"])
	assert.Equal(t, "Capability matched", entry["message"])
	assert.Equal(t, "match", entry["operation"])
	assert.Equal(t, "qbr_deck", entry["capability_id"])
}

func TestStructuredLoggerTextFormat(t *testing.T) {
	t.Setenv("CAPMATCH_LOG_FORMAT", "text")
	t.Setenv("CAPMATCH_LOG_LEVEL", "DEBUG")

	logger := NewStructuredLogger("capmatch-test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Warn("Keyword matching degraded to no opinion", map[string]interface{}{
		"operation": "keyword_match",
	})

	out := buf.String()
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "Keyword matching degraded to no opinion")
	assert.Contains(t, out, "operation=keyword_match")
}

func TestStructuredLoggerLevelFiltering(t *testing.T) {
	t.Setenv("CAPMATCH_LOG_FORMAT", "text")
	t.Setenv("CAPMATCH_LOG_LEVEL", "WARN")

	logger := NewStructuredLogger("capmatch-test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Debug("hidden", nil)
	logger.Info("hidden", nil)
	assert.Empty(t, buf.String())

	logger.Error("shown", nil)
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestStructuredLoggerDefaultsToInfo(t *testing.T) {
	t.Setenv("CAPMATCH_LOG_FORMAT", "text")
	t.Setenv("CAPMATCH_LOG_LEVEL", "")

	logger := NewStructuredLogger("capmatch-test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	logger.Info("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}
