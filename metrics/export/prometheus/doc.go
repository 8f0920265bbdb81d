// Package prometheus exposes pomoAuth engine counters through a
// client_golang collector.
//
// Counter names are pomoauth_*_total; the single histogram is
// pomoauth_validate_latency_seconds. The exporter registers itself on a
// private registry and never touches the global one.
package prometheus
