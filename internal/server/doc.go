// Package server exposes the console over HTTP: document and turn-log
// reads, user edits, exports, health, statistics, and Prometheus
// metrics.
package server
