// Package audit implements async dispatching of session lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with a ULID, timestamp, type, request ID and metadata.
//
// This package owns buffering and sink delivery. It does NOT decide which
// events to emit; the root client does.
//
// # What this package must NOT do
//
//   - Import goSession or any sibling internal package.
//   - Record credential material. Events never carry tokens.
package audit
