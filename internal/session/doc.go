// Package session implements the realtime session surface: a websocket
// client for the live transcription API that decodes server frames into
// tagged events, dispatches them to subscribers on a single goroutine,
// and exposes outbound media sends with an explicit interceptor chain
// for observing audio on its way out.
package session
