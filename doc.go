// Package pomoAuth is the session-security core of the Pomodoro service. It
// issues HMAC-signed access and refresh token pairs, validates them against a
// Redis-backed revocation store, and reconciles OAuth identities with local
// accounts.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// pomoAuth is the public surface: [Engine], [Builder], [Config] and value
// types. Token encoding lives in jwt, revocation keys in revocation, the
// validation pipeline in security, and identity reconciliation in identity.
// Flow orchestration, rate limiting and audit dispatch live under internal/.
//
// # Revocation contract
//
// A token is rejected when its jti was revoked individually or when its iat
// is at or before the account's logout cutoff. A revocation store that
// cannot answer rejects the token with [ErrStoreUnavailable].
package pomoAuth
