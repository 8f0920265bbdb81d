// Package security issues token pairs and runs the validation pipeline that
// every presented token goes through:
//
//	decode -> type check -> not individually revoked -> not cut off -> valid
//
// Expired tokens stop at decode and never reach the revocation store. A
// revocation store failure rejects the token.
//
// Both revocation causes surface as [ErrTokenRevoked]; the concrete
// [*RevokedError] keeps the cause for logs and metrics.
package security
