// Package identity reconciles identities asserted by an external OAuth
// provider with local accounts.
//
// Email is the sole linking key: an existing account with the same
// normalized email is returned unchanged. Otherwise a new account is
// provisioned with a slug username derived from provider data and a random
// local credential that is never disclosed.
package identity
