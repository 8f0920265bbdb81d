// Package otel binds pomoAuth engine counters to OpenTelemetry observable
// instruments. Callers own the MeterProvider and pass in a Meter.
package otel
