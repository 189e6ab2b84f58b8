package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestComponentLoggersCarFields(t *testing.T) {
	var buf bytes.Buffer
	Default = &Logger{logger: zerolog.New(&buf)}
	defer func() { Default = nil }()

	ForSource("cars.com").Info().Msg("configured")
	assert.Contains(t, buf.String(), `"source":"cars.com"`)

	buf.Reset()
	ForStore("cargurus").Warn().Msg("restored")
	assert.Contains(t, buf.String(), `"component":"dedup"`)
	assert.Contains(t, buf.String(), `"source":"cargurus"`)

	buf.Reset()
	LogError("worker", errors.New("boom"), "pass %d failed", 3)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), "pass 3 failed")
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "not-a-level")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CARWATCH_ENVIRONMENT", "production")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	t.Setenv("CARWATCH_ENVIRONMENT", "development")
	assert.Equal(t, zerolog.DebugLevel, getLogLevel())
}
