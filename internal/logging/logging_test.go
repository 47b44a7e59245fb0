package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "debug", "json")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("rows", 3).Info("batch predictions generated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "batch predictions generated", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, 3.0, line["rows"])
}

func TestNewWithOutputText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "warn", "TEXT")
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `msg=shown`)
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewWithOutput(&bytes.Buffer{}, "chatty", "json")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
