// Package httpapi is the echo transport of the pomoauthd service.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/MrEthical07/pomoAuth/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Deps struct {
	Engine *pomoAuth.Engine
	Logger *slog.Logger
	// Limiter throttles every route per client IP. Nil disables it.
	Limiter *IPLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// SecureCookies marks the oauth state cookie Secure.
	SecureCookies bool
}

// New returns an echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(d.Logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestContext(d.Logger))
	if d.Limiter != nil {
		e.Use(rateLimit(d.Limiter))
	}

	Register(e, d)
	return e
}

// Register mounts the auth, users and ops routes on e.
func Register(e *echo.Echo, d Deps) {
	h := &Handlers{Engine: d.Engine, SecureCookies: d.SecureCookies}
	guard := echo.WrapMiddleware(middleware.Guard(d.Engine))
	admin := echo.WrapMiddleware(middleware.RequireAdmin(d.Engine))

	e.GET("/healthz", h.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	auth := e.Group("/auth")
	auth.POST("/token", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout, guard)
	auth.POST("/logout-all", h.LogoutAll, guard)
	auth.GET("/:provider/login", h.OAuthRedirect)
	auth.GET("/:provider/callback", h.OAuthCallback)

	users := e.Group("/users")
	users.POST("/register", h.Register)
	users.POST("/register-superuser", h.RegisterSuperuser, admin)
	users.GET("/profile", h.Profile, guard)
	users.PUT("/update", h.UpdateProfile, guard)
	users.PATCH("/change-password", h.ChangePassword, guard)
	users.DELETE("/delete", h.Delete, guard)
}

// requestContext carries the client IP and a request-scoped logger on the
// request context.
func requestContext(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := base.With(
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"method", req.Method,
				"path", req.URL.Path,
			)
			ctx := pomoAuth.WithClientIP(req.Context(), c.RealIP())
			ctx = logging.IntoContext(ctx, l)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func rateLimit(l *IPLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}

// errorHandler renders every error as {"detail": ...}.
func errorHandler(base *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := "Something went wrong"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(status)
			}
		}

		l := logging.FromContext(c.Request().Context(), base)
		if status >= http.StatusInternalServerError {
			l.Error("request failed", "status", status, "error", err)
		}
		if status == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"detail": detail})
		}
		if err != nil {
			l.Error("write error response", "error", err)
		}
	}
}
