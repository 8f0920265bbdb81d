package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/jwt"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	claims *pomoAuth.Claims
	err    error
	got    string
}

func (f *fakeValidator) Validate(_ context.Context, token string) (*pomoAuth.Claims, error) {
	f.got = token
	return f.claims, f.err
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, *pomoAuth.Claims) {
	t.Helper()
	var seen *pomoAuth.Claims
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = pomoAuth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestGuardPassesClaims(t *testing.T) {
	claims := &pomoAuth.Claims{Type: jwt.TypeAccess, AccessProfile: &jwt.AccessProfile{Username: "alice"}}
	v := &fakeValidator{claims: claims}

	rec, seen := serve(t, Guard(v), "bearer tok-123")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "tok-123", v.got)
	require.Same(t, claims, seen)
}

func TestGuardRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
		status int
		detail string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized, detail: "Not authenticated"},
		{name: "basic scheme", header: "Basic abc", status: http.StatusUnauthorized, detail: "Not authenticated"},
		{name: "expired", header: "Bearer t", err: pomoAuth.ErrTokenExpired, status: http.StatusUnauthorized, detail: "Token expired"},
		{name: "revoked", header: "Bearer t", err: &revokedErr{}, status: http.StatusUnauthorized, detail: "Token has been revoked"},
		{name: "wrong type", header: "Bearer t", err: pomoAuth.ErrWrongTokenType, status: http.StatusUnauthorized, detail: "Invalid token type"},
		{name: "garbage", header: "Bearer t", err: pomoAuth.ErrInvalidToken, status: http.StatusUnauthorized, detail: "Token validation error"},
		{name: "store down", header: "Bearer t", err: pomoAuth.ErrStoreUnavailable, status: http.StatusServiceUnavailable, detail: "Service unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, seen := serve(t, Guard(&fakeValidator{err: tc.err}), tc.header)
			require.Equal(t, tc.status, rec.Code)
			require.JSONEq(t, `{"detail":"`+tc.detail+`"}`, rec.Body.String())
			require.Nil(t, seen)
		})
	}
}

type revokedErr struct{}

func (revokedErr) Error() string        { return "revoked" }
func (revokedErr) Is(target error) bool { return target == pomoAuth.ErrTokenRevoked }

func TestRequireAdmin(t *testing.T) {
	user := &fakeValidator{claims: &pomoAuth.Claims{AccessProfile: &jwt.AccessProfile{Username: "alice"}}}
	rec, _ := serve(t, RequireAdmin(user), "Bearer t")
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin := &fakeValidator{claims: &pomoAuth.Claims{AccessProfile: &jwt.AccessProfile{Username: "root", IsAdmin: true}}}
	rec, _ = serve(t, RequireAdmin(admin), "Bearer t")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer  abc ")
	require.True(t, ok)
	require.Equal(t, "abc", tok)

	_, ok = BearerToken("Bearer ")
	require.False(t, ok)
	_, ok = BearerToken("abc")
	require.False(t, ok)
}
