// Package jwt encodes and decodes the HMAC-signed access and refresh tokens
// issued by pomoAuth.
//
// Both token kinds carry sub, jti, iat, exp and a type tag; access tokens
// additionally carry the account's username, email and admin flag. Decode
// distinguishes an expired but authentic token ([ErrExpired]) from everything
// else ([ErrMalformed]).
//
// # What this package must NOT do
//
//   - Consult revocation state. That is the security package's job.
//   - Accept a signing algorithm other than the configured one.
package jwt
