// Package obs keeps a session with OBS Studio over obs-websocket v5.
//
// The protocol itself is handled by goobs. Session adds reconnection with
// backoff, a liveness probe, and the handful of requests obstrigger issues:
// program scene switching, scene item and filter visibility, and custom
// broadcast events.
//
// Events are delivered on a single channel as values of the sealed Event
// interface (SceneChanged, StreamStarted, StreamStopped, CustomMessage).
package obs
