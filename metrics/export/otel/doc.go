// Package otel publishes goSession metrics through an OpenTelemetry meter.
//
// Counters become observable counters; the latency histogram is published
// as one cumulative gauge per bucket plus a count gauge, read from a
// snapshot on every collection.
package otel
