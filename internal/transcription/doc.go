// Package transcription packages trimmed turn audio into model requests and
// defensively parses the responses. It implements retry with exponential
// backoff, a single-in-flight dispatch limit, and sentinel-error degradation
// so a transport failure never reaches the reconciliation layer.
package transcription
