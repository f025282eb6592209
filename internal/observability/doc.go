// Package observability installs the process-wide structured logger and
// tracer provider.
//
// Logs go either straight to a text or JSON slog handler, or through an
// OpenTelemetry log pipeline (stdout, OTLP/HTTP or OTLP/gRPC exporter) bridged
// into slog. In both cases records logged with a span in their context carry
// the trace and span ids.
package observability
