package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "json", &buf)

	logger.WithField("tree_id", "chest-pain").Debug("Tree evaluated")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Tree evaluated", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "chest-pain", entry["tree_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "text", &buf)

	logger.Info("Rule registry loaded")

	assert.Contains(t, buf.String(), `msg="Rule registry loaded"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("chatty", "json", &buf)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	logger.Debug("hidden")
	assert.Zero(t, buf.Len())
}
