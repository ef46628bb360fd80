package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/changelog/oteladapters"
	"github.com/coursehistory/coursehistory-go/config"
	"github.com/coursehistory/coursehistory-go/history"
	"github.com/coursehistory/coursehistory-go/logadapters"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitNotFound = 2

	instrumentationName = "github.com/coursehistory/coursehistory-go"
)

var outputJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type loggers struct {
	logger           changelog.Logger
	contextualLogger changelog.ContextualLogger
	sync             func() error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("coursehistory", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configDir := flags.String("config", ".", "directory holding config.yaml")
	courseArg := flags.String("course", "", "id of the course whose history is printed")

	if err := flags.Parse(args); err != nil {
		return exitFailure
	}

	query, err := history.ParseQuery(*courseArg)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -course %q: %v\n", *courseArg, err)
		return exitFailure
	}

	settings, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "loading configuration: %v\n", err)
		return exitFailure
	}

	logs, err := newLoggers(settings, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "creating logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logs.sync() }()

	telemetry, err := config.NewTelemetryProviders(ctx, settings.Telemetry)
	if err != nil {
		logs.logger.Error("creating telemetry providers failed", "error", err.Error())
		return exitFailure
	}
	logs = logs.withTelemetry(telemetry.LoggerProvider)
	defer func() {
		if names, collectErr := telemetry.CollectMetricNames(context.WithoutCancel(ctx)); collectErr == nil {
			logs.logger.Debug("metrics recorded", "metrics", strings.Join(names, ","))
		}

		if shutdownErr := telemetry.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logs.logger.Warn("telemetry shutdown failed", "error", shutdownErr.Error())
		}
	}()

	tracer := oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))
	metrics := oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))

	infra, err := openBackend(ctx, settings, logs, tracer, metrics)
	if err != nil {
		logs.logger.Error("opening database failed", "error", err.Error())
		return exitFailure
	}
	defer infra.close()

	handler, err := newHandler(settings, infra, logs, tracer, metrics)
	if err != nil {
		logs.logger.Error("creating history handler failed", "error", err.Error())
		return exitFailure
	}

	requestCtx, cancel := context.WithTimeout(ctx, settings.RequestTimeout)
	defer cancel()

	result, err := handler.Handle(requestCtx, query)
	switch {
	case errors.Is(err, history.ErrCourseNotFound):
		fmt.Fprintf(stderr, "course %s not found\n", query.CourseID)
		return exitNotFound
	case err != nil:
		fmt.Fprintf(stderr, "reading history of course %s: %v\n", query.CourseID, err)
		return exitFailure
	}

	encoder := outputJSON.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(result); err != nil {
		logs.logger.Error("writing result failed", "error", err.Error())
		return exitFailure
	}

	return exitOK
}

// newLoggers builds the basic logger of the configured backend.
func newLoggers(settings config.Settings, stderr io.Writer) (loggers, error) {
	var logs loggers

	switch settings.Logging.Backend {
	case config.LoggingBackendZap:
		zapLogger, err := logadapters.NewProductionZapLogger(settings.Logging.Level)
		if err != nil {
			return loggers{}, err
		}

		logs = loggers{logger: zapLogger, sync: zapLogger.Sync}

	default:
		var level slog.Level
		if err := level.UnmarshalText([]byte(settings.Logging.Level)); err != nil {
			return loggers{}, err
		}

		handler := slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})
		logs = loggers{logger: slog.New(handler), sync: func() error { return nil }}
	}

	return logs, nil
}

// withTelemetry sends contextual logs through the OpenTelemetry slog bridge when log records are exported.
func (l loggers) withTelemetry(provider *sdklog.LoggerProvider) loggers {
	if provider != nil {
		l.contextualLogger = oteladapters.NewSlogBridgeLogger(instrumentationName, provider)
	}

	return l
}

func newHandler(
	settings config.Settings,
	b backend,
	logs loggers,
	tracer history.TracingCollector,
	metrics history.MetricsCollector,
) (history.QueryHandler, error) {

	location, err := history.LoadLocation(settings.Presentation.TimeZone)
	if err != nil {
		return history.QueryHandler{}, err
	}

	registry := history.NewProviderRegistry(
		history.NewCourseProvider(
			b.catalog.Statuses(),
			b.catalog.Departments(),
			b.catalog.Levels(),
			settings.Presentation.GroupingWindow,
		),
		history.NewTestProvider(b.catalog.Lessons()),
		history.NewAttachmentProvider(b.catalog.Lessons()),
	)

	opts := []history.Option{
		history.WithLogging(logs.logger),
		history.WithTracing(tracer),
		history.WithMetrics(metrics),
		history.WithPresentationMapper(history.NewPresentationMapper(location, settings.Presentation.TimestampLayout)),
	}
	if logs.contextualLogger != nil {
		opts = append(opts, history.WithContextualLogging(logs.contextualLogger))
	}

	return history.NewQueryHandler(b.store, b.catalog, b.catalog, b.catalog, registry, opts...)
}
