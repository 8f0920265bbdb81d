// Package middleware adapts Engine.Validate to net/http.
//
// [Guard] reads the bearer token, validates it as an access token and stores
// the claims on the request context, where handlers read them with
// pomoAuth.ClaimsFromContext. [RequireAdmin] additionally checks the
// is_admin claim. Rejections carry a JSON body with a detail message;
// [Status] exposes the same mapping to other transports.
package middleware
