// Package observability records queue lifecycle counters with
// OpenTelemetry. MetricsExtension is an ext.Extension: register it on a
// queue (queue.WithExtension) to count posts, fetches, deletes, releases
// and failed runs, and on a runner (runner.WithExtensions) to count worker
// process exits.
//
// For per-execution tracing and duration histograms, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability
