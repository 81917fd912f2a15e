// Package prometheus exposes goSession metrics as a Prometheus collector.
//
// [NewCollector] reads a snapshot on every scrape, so nothing is registered
// globally. Mount [Handler] or register the collector with your own registry.
// Counters are named gosession_*_total; the call latency histogram is
// gosession_call_latency_seconds.
package prometheus
