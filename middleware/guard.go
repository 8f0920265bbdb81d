package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	pomoAuth "github.com/MrEthical07/pomoAuth"
)

// Validator is the part of *pomoAuth.Engine the guard needs.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*pomoAuth.Claims, error)
}

// Guard rejects requests without a valid access token.
func Guard(engine Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusServiceUnavailable, "Service unavailable")
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			claims, err := engine.Validate(r.Context(), token)
			if err != nil {
				status, msg := Status(err)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				writeError(w, status, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(pomoAuth.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin is Guard plus an is_admin check.
func RequireAdmin(engine Validator) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := pomoAuth.ClaimsFromContext(r.Context())
			if !ok || claims.AccessProfile == nil || !claims.IsAdmin {
				writeError(w, http.StatusForbidden, "Admin privileges required")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// Status maps a validation error to an HTTP status and client message.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, pomoAuth.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, pomoAuth.ErrTokenRevoked):
		return http.StatusUnauthorized, "Token has been revoked"
	case errors.Is(err, pomoAuth.ErrWrongTokenType):
		return http.StatusUnauthorized, "Invalid token type"
	case errors.Is(err, pomoAuth.ErrStoreUnavailable), errors.Is(err, pomoAuth.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "Service unavailable"
	default:
		return http.StatusUnauthorized, "Token validation error"
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
