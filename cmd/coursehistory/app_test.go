package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/coursehistory/coursehistory-go/changelog/oteladapters"
	"github.com/coursehistory/coursehistory-go/config"
	"github.com/coursehistory/coursehistory-go/logadapters"
)

func Test_Run_RejectsInvalidArguments(t *testing.T) {
	testCases := []struct {
		description string
		args        []string
		message     string
	}{
		{"missing course", []string{}, "invalid -course"},
		{"malformed course id", []string{"-course", "not-a-uuid"}, "invalid -course"},
		{"unknown flag", []string{"-verbose"}, "flag provided but not defined"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			// arrange
			var stdout, stderr bytes.Buffer

			// act
			code := run(context.Background(), tc.args, &stdout, &stderr)

			// assert
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, stderr.String(), tc.message)
			assert.Empty(t, stdout.String())
		})
	}
}

func Test_Run_RejectsInvalidConfiguration(t *testing.T) {
	// setup
	t.Setenv("COURSEHISTORY_LOGGING_BACKEND", "syslog")
	var stdout, stderr bytes.Buffer

	// act
	code := run(context.Background(), []string{"-config", t.TempDir(), "-course", "6f1c2d3e-4a5b-4c6d-8e7f-901234567890"}, &stdout, &stderr)

	// assert
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "loading configuration")
}

func Test_NewLoggers(t *testing.T) {
	t.Run("slog writes json to the given writer", func(t *testing.T) {
		// arrange
		var out bytes.Buffer
		settings := config.DefaultSettings()
		settings.Logging.Level = "debug"

		// act
		logs, err := newLoggers(settings, &out)
		require.NoError(t, err)
		logs.logger.Debug("hello", "course_id", "c-1")

		// assert
		assert.Contains(t, out.String(), `"msg":"hello"`)
		assert.Contains(t, out.String(), `"course_id":"c-1"`)
		assert.Nil(t, logs.contextualLogger)
		assert.NoError(t, logs.sync())
	})

	t.Run("zap backend", func(t *testing.T) {
		// arrange
		settings := config.DefaultSettings()
		settings.Logging.Backend = config.LoggingBackendZap

		// act
		logs, err := newLoggers(settings, &bytes.Buffer{})

		// assert
		require.NoError(t, err)
		assert.IsType(t, &logadapters.ZapLogger{}, logs.logger)
		assert.Nil(t, logs.contextualLogger)
	})

	t.Run("exported log records get the slog bridge", func(t *testing.T) {
		// arrange
		logs, err := newLoggers(config.DefaultSettings(), &bytes.Buffer{})
		require.NoError(t, err)

		provider := sdklog.NewLoggerProvider()
		defer func() { _ = provider.Shutdown(context.Background()) }()

		// act
		withoutExport := logs.withTelemetry(nil)
		withExport := logs.withTelemetry(provider)

		// assert
		assert.Nil(t, withoutExport.contextualLogger)
		assert.IsType(t, &oteladapters.SlogBridgeLogger{}, withExport.contextualLogger)
	})

	t.Run("unknown slog level", func(t *testing.T) {
		// arrange
		settings := config.DefaultSettings()
		settings.Logging.Level = "chatty"

		// act
		_, err := newLoggers(settings, &bytes.Buffer{})

		// assert
		assert.Error(t, err)
	})
}
