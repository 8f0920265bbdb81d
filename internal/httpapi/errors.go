package httpapi

import (
	"errors"
	"net/http"
	"strings"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/middleware"
	"github.com/labstack/echo/v4"
)

// errorOptions tunes the mapping for one route.
type errorOptions struct {
	// notFoundUnauthorized reports a missing account as 401, as the refresh
	// route does.
	notFoundUnauthorized bool
	// oldPassword words a rejected password as the current one being
	// replaced, as the change-password route does.
	oldPassword bool
}

// httpError maps an engine error to the response a client sees. The
// original error is kept as Internal for logging.
func httpError(err error, opts errorOptions) *echo.HTTPError {
	status, detail := statusFor(err, opts)
	he := echo.NewHTTPError(status, detail)
	he.Internal = err
	return he
}

func statusFor(err error, opts errorOptions) (int, string) {
	switch {
	case errors.Is(err, pomoAuth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, pomoAuth.ErrLoginRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts, try again later"
	case errors.Is(err, pomoAuth.ErrAccountNotFound):
		if opts.notFoundUnauthorized {
			return http.StatusUnauthorized, "User not found"
		}
		return http.StatusNotFound, "User not found"
	case errors.Is(err, pomoAuth.ErrUsernameTaken):
		return http.StatusConflict, "User with this username already exists"
	case errors.Is(err, pomoAuth.ErrEmailTaken):
		return http.StatusConflict, "User with this email already exists"
	case errors.Is(err, pomoAuth.ErrInvalidPassword):
		if opts.oldPassword {
			return http.StatusUnprocessableEntity, "Invalid old password"
		}
		return http.StatusUnprocessableEntity, "Invalid password"
	case errors.Is(err, pomoAuth.ErrInvalidAccount):
		return http.StatusUnprocessableEntity, validationDetail(err)
	case errors.Is(err, pomoAuth.ErrUnsupportedProvider):
		return http.StatusUnprocessableEntity, "Unsupported provider"
	case errors.Is(err, pomoAuth.ErrOAuthExchange):
		return http.StatusBadRequest, "Failed to authenticate with provider"
	case errors.Is(err, pomoAuth.ErrStoreUnavailable), errors.Is(err, pomoAuth.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "Service unavailable"
	case errors.Is(err, pomoAuth.ErrInvalidToken),
		errors.Is(err, pomoAuth.ErrTokenExpired),
		errors.Is(err, pomoAuth.ErrTokenRevoked),
		errors.Is(err, pomoAuth.ErrWrongTokenType):
		return middleware.Status(err)
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}

// validationDetail strips the sentinel prefix from a field validation error.
func validationDetail(err error) string {
	msg := err.Error()
	prefix := pomoAuth.ErrInvalidAccount.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
