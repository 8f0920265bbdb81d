// Package internal contains helpers that are private to pomoAuth, mainly
// secure random generation for OAuth state and provisioned credentials.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: environment loading for the service binary
//   - flows: pure-function flow runners for every Engine operation
//   - httpapi: echo transport for the service binary
//   - logging: slog construction and context carriage
//   - rate: Redis-backed failed-login limiter
//
// # What this package must NOT do
//
//   - Export types that appear in the public pomoAuth API.
//   - Be imported by any package outside the pomoAuth module.
package internal
