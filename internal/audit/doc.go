// Package audit delivers security events to a caller-supplied Sink.
//
// [Dispatcher] is a buffered async relay; with DropIfFull it never blocks
// the request path and counts what it discards. The package does not decide
// which events exist: the engine and flow functions do.
package audit
