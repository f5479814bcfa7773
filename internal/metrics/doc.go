// Package metrics records toolchain run metrics.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no call site needs a nil check. PrometheusRecorder backs
// the interface with client_golang collectors; the gathered registry can be
// served over HTTP (HTTPHandler) or written to a node-exporter textfile
// (WriteTextfile) after a one-shot build.
package metrics
