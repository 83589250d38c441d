// Package events implements event dispatching for authentication and
// session lifecycle notifications.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, fan-out, no-op).
//   - [Dispatcher]: synchronous or buffered async relay with drop-if-full semantics.
//   - [Event]: structured record with timestamp, type, principal, host, session, metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which
// events to emit; the root package does.
//
// # What this package must NOT do
//
//   - Surface a sink failure to the emitting caller.
//   - Import goShield or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package events
