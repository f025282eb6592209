package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// instrumentationName identifies records produced by the slog bridge.
const instrumentationName = "github.com/florianilch/lodestone"

// Exporter names accepted by Options.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Options configures Instrument.
type Options struct {
	Level slog.Level
	// Format is "text" or "json" and only applies without an exporter.
	Format string
	// Exporter selects the OpenTelemetry log exporter; "" or "none" disables it.
	Exporter string
	// Endpoint overrides the OTLP endpoint URL. Empty uses the OTEL_* env defaults.
	Endpoint string
	// Writer receives local log output. Defaults to os.Stderr.
	Writer io.Writer
	// SpanProcessors receive every finished span.
	SpanProcessors []sdktrace.SpanProcessor
}

// ShutdownFunc flushes and stops the log and trace pipelines.
type ShutdownFunc func(context.Context) error

// Instrument sets the default slog logger and the global tracer provider
// according to opts.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	var handler slog.Handler
	shutdownLogs := func(context.Context) error { return nil }

	if opts.Exporter == "" || opts.Exporter == ExporterNone {
		local, err := localHandler(opts)
		if err != nil {
			return nil, err
		}
		handler = local
	} else {
		exporter, err := newExporter(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("creating %s log exporter: %w", opts.Exporter, err)
		}

		processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
		global.SetLoggerProvider(provider)

		// The bridge reads span context from the record context itself.
		handler = otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
		shutdownLogs = provider.Shutdown
	}

	tracerProvider := newTracerProvider(opts.SpanProcessors)
	otel.SetTracerProvider(tracerProvider)
	slog.SetDefault(slog.New(handler))

	return func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), shutdownLogs(ctx))
	}, nil
}

// newTracerProvider samples every root span so log records written inside a
// span can be correlated by trace id.
func newTracerProvider(processors []sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	for _, sp := range processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(tpOpts...)
}

func localHandler(opts Options) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	switch opts.Format {
	case "", "text":
		handler = slog.NewTextHandler(opts.Writer, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(opts.Writer, handlerOpts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}
	return &traceHandler{Handler: handler}, nil
}

func newExporter(ctx context.Context, opts Options) (sdklog.Exporter, error) {
	switch opts.Exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(opts.Writer))
	case ExporterOTLPHTTP:
		var httpOpts []otlploghttp.Option
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlploghttp.WithEndpointURL(opts.Endpoint))
		}
		return otlploghttp.New(ctx, httpOpts...)
	case ExporterOTLPGRPC:
		var grpcOpts []otlploggrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlploggrpc.WithEndpointURL(opts.Endpoint))
		}
		return otlploggrpc.New(ctx, grpcOpts...)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", opts.Exporter)
	}
}

// severity maps a slog level onto the minimum severity of the OTel pipeline.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
