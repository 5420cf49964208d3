package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, NoColors: true})
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Debug("hidden")
	logger.WithFields(Fields{"class": "up"}).Info("Trigger fired")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Trigger fired")
	assert.Contains(t, out, "class:up")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNew_WritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mudra.log")

	logger, err := New(Config{Level: "debug", File: file, Output: &bytes.Buffer{}, NoColors: true})
	require.NoError(t, err)

	logger.Debug("written to file")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing happens")
}
