// Package audit dispatches security events (logins, refreshes, logouts,
// revocations) asynchronously to a pluggable [Sink].
//
// The package does not decide which events to emit; the authority does.
// Sinks provided here write to a channel, to an io.Writer as JSON lines, or
// to a zap logger.
package audit
