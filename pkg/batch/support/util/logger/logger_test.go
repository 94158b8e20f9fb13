package logger_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)
	defer logger.SetLogLevel("INFO")

	logger.SetLogLevel("WARN")
	logger.Infof("hidden %d", 1)
	logger.Warnf("shown %d", 2)
	logger.Errorf("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestSetLogLevel(t *testing.T) {
	defer logger.SetLogLevel("INFO")

	cases := map[string]logger.LogLevel{
		"debug":  logger.LevelDebug,
		"TRACE":  logger.LevelDebug,
		"info":   logger.LevelInfo,
		"Warn":   logger.LevelWarn,
		"ERROR":  logger.LevelError,
		"silent": logger.LevelSilent,
		"bogus":  logger.LevelInfo,
		"":       logger.LevelInfo,
	}
	for in, want := range cases {
		logger.SetLogLevel(in)
		assert.Equal(t, want, logger.GetLogLevel(), "level %q", in)
	}
}
