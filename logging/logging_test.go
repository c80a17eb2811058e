package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	logger, err := NewWithOutput("", "", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput("debug", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("path", "/clicked").Debug("request")
	assert.Contains(t, buf.String(), `"path":"/clicked"`)
	assert.Contains(t, buf.String(), `"msg":"request"`)
}

func TestNewInvalidLevel(t *testing.T) {
	logger, err := NewWithOutput("loud", "text", &bytes.Buffer{})
	assert.Error(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewInvalidFormat(t *testing.T) {
	_, err := NewWithOutput("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
