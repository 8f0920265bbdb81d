// Package oauth implements the authorization-code clients for the supported
// identity providers. Each client exchanges a code for a provider token and
// fetches the user's profile as an identity.ExternalIdentity.
package oauth
