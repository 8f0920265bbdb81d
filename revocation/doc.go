// Package revocation records revoked token identifiers and per-account
// logout-all cutoffs in Redis.
//
// # Key layout
//
//	revoked:{tokenID}     -> "1"            TTL = refresh token lifetime
//	logout_ts:{accountID} -> unix seconds   TTL = refresh token lifetime
//
// Every operation is a single atomic Redis command, so concurrent callers
// need no client-side locking. Transport failures are reported as
// [ErrStoreUnavailable] so callers can fail closed.
//
// # What this package must NOT do
//
//   - Decide whether a token is valid. It only answers lookups.
//   - Cache answers between calls.
package revocation
