package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New(true, "text").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(false, "text").GetLevel())
}

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, false, "json")

	log.WithField("run_id", "abc").Info("report sent")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "report sent", entry["msg"])
	assert.Equal(t, "abc", entry["run_id"])
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, false, "text")

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
