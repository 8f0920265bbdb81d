package httpapi

import (
	"net/http"
	"time"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/labstack/echo/v4"
)

const oauthStateCookie = "pomo_oauth_state"

type Handlers struct {
	Engine        *pomoAuth.Engine
	SecureCookies bool
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Age             *int   `json:"age"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type updateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Age      *int    `json:"age"`
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type deleteRequest struct {
	Password string `json:"password"`
}

type profileResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
	Age      *int    `json:"age"`
	IsAdmin  bool    `json:"is_admin"`
}

func toProfile(acc *pomoAuth.Account) profileResponse {
	p := profileResponse{
		ID:       acc.ID,
		Username: acc.Username,
		Email:    acc.Email,
		Age:      acc.Age,
		IsAdmin:  acc.IsAdmin,
	}
	if acc.FullName != "" {
		name := acc.FullName
		p.FullName = &name
	}
	return p
}

func detail(msg string) echo.Map {
	return echo.Map{"detail": msg}
}

func (h *Handlers) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx, nil).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", http.StatusUnprocessableEntity, "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}

	pair, err := h.Engine.Login(ctx, req.Username, req.Password)
	if err != nil {
		he := httpError(err, errorOptions{})
		l.Warn("login_failed", "status", he.Code, "error", err)
		return he
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handlers) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "refresh_token is required")
	}

	pair, err := h.Engine.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return httpError(err, errorOptions{notFoundUnauthorized: true})
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handlers) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	claims, _ := pomoAuth.ClaimsFromContext(ctx)
	if err := h.Engine.Logout(ctx, claims); err != nil {
		return httpError(err, errorOptions{})
	}
	logging.FromContext(ctx, nil).Info("logout", "token_id", claims.ID)
	return c.JSON(http.StatusOK, detail("Successfully logged out"))
}

func (h *Handlers) LogoutAll(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := h.callerID(c)
	if err != nil {
		return err
	}
	if err := h.Engine.LogoutAll(ctx, id); err != nil {
		return httpError(err, errorOptions{})
	}
	return c.JSON(http.StatusOK, detail("Successfully logged out"))
}

// OAuthRedirect sends the browser to the provider consent page. The state
// is bound to the browser with a short-lived cookie.
func (h *Handlers) OAuthRedirect(c echo.Context) error {
	provider, err := identity.ParseProvider(c.Param("provider"))
	if err != nil {
		return httpError(err, errorOptions{})
	}
	state, err := pomoAuth.NewOAuthState()
	if err != nil {
		return err
	}
	target, err := h.Engine.OAuthAuthURL(provider, state)
	if err != nil {
		return httpError(err, errorOptions{})
	}

	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, target)
}

func (h *Handlers) OAuthCallback(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx, nil).With("handler", "oauth_callback")

	provider, err := identity.ParseProvider(c.Param("provider"))
	if err != nil {
		return httpError(err, errorOptions{})
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "code is required")
	}

	state := c.QueryParam("state")
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || !pomoAuth.ValidOAuthState(state) || cookie.Value != state {
		l.Warn("oauth_state_mismatch", "provider", string(provider))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid OAuth state")
	}
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Path: "/auth", MaxAge: -1, HttpOnly: true, Secure: h.SecureCookies})

	pair, err := h.Engine.OAuthLogin(ctx, provider, code)
	if err != nil {
		return httpError(err, errorOptions{})
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handlers) Register(c echo.Context) error {
	return h.register(c, false)
}

// RegisterSuperuser creates an admin account. Only admins reach it.
func (h *Handlers) RegisterSuperuser(c echo.Context) error {
	return h.register(c, true)
}

func (h *Handlers) register(c echo.Context, admin bool) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}
	if req.Password != req.PasswordConfirm {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Passwords do not match")
	}

	acc, err := h.Engine.CreateAccount(ctx, pomoAuth.CreateAccountRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Age:      req.Age,
		IsAdmin:  admin,
	})
	if err != nil {
		return httpError(err, errorOptions{})
	}
	return c.JSON(http.StatusCreated, toProfile(acc))
}

func (h *Handlers) Profile(c echo.Context) error {
	id, err := h.callerID(c)
	if err != nil {
		return err
	}
	acc, err := h.Engine.GetAccount(c.Request().Context(), id)
	if err != nil {
		return httpError(err, errorOptions{})
	}
	return c.JSON(http.StatusOK, toProfile(acc))
}

func (h *Handlers) UpdateProfile(c echo.Context) error {
	id, err := h.callerID(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}

	acc, err := h.Engine.UpdateProfile(c.Request().Context(), id, pomoAuth.UpdateProfileRequest{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Age:      req.Age,
	})
	if err != nil {
		return httpError(err, errorOptions{})
	}
	return c.JSON(http.StatusOK, toProfile(acc))
}

func (h *Handlers) ChangePassword(c echo.Context) error {
	id, err := h.callerID(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Passwords do not match")
	}

	if err := h.Engine.ChangePassword(c.Request().Context(), id, req.OldPassword, req.NewPassword); err != nil {
		return httpError(err, errorOptions{oldPassword: true})
	}
	return c.JSON(http.StatusOK, detail("Password successfully updated, please login again"))
}

func (h *Handlers) Delete(c echo.Context) error {
	id, err := h.callerID(c)
	if err != nil {
		return err
	}
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}

	if err := h.Engine.DeleteAccount(c.Request().Context(), id, req.Password); err != nil {
		return httpError(err, errorOptions{})
	}
	return c.JSON(http.StatusOK, detail("User successfully deleted"))
}

func (h *Handlers) Health(c echo.Context) error {
	rtt, err := h.Engine.Ping(c.Request().Context())
	if err != nil {
		logging.FromContext(c.Request().Context(), nil).Warn("health_check_failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "store_rtt_ms": rtt.Milliseconds()})
}

// callerID resolves the account id of the guarded request.
func (h *Handlers) callerID(c echo.Context) (int64, error) {
	claims, ok := pomoAuth.ClaimsFromContext(c.Request().Context())
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	id, err := account.ParseSubject(claims.Subject)
	if err != nil {
		return 0, httpError(pomoAuth.ErrInvalidToken, errorOptions{})
	}
	return id, nil
}
