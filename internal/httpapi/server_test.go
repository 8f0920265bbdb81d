package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/accountdb"
	promexport "github.com/MrEthical07/pomoAuth/metrics/export/prometheus"
	"github.com/MrEthical07/pomoAuth/oauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	engine *pomoAuth.Engine
	echo   *echo.Echo
	mr     *miniredis.Miniredis
	repo   *account.MemoryRepository
	unix   atomic.Int64
}

func (env *testEnv) now() time.Time { return time.Unix(env.unix.Load(), 0) }

// tick moves the engine clock past the current second.
func (env *testEnv) tick() { env.unix.Add(1) }

type envOptions struct {
	limiter *IPLimiter
	clients []oauth.Client
	// accounts replaces the in-memory repository.
	accounts account.Repository
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := pomoAuth.DefaultConfig()
	cfg.JWT.Secret = []byte("httpapi-test-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Parallelism = 1
	cfg.Mail.Enabled = false
	cfg.Metrics.Enabled = true

	env := &testEnv{mr: mr, repo: account.NewMemoryRepository()}
	env.unix.Store(1_700_000_000)
	var accounts account.Repository = env.repo
	if opts.accounts != nil {
		accounts = opts.accounts
	}

	b := pomoAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountRepository(accounts).
		WithClock(env.now)
	for _, c := range opts.clients {
		b = b.WithOAuthClient(c)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	env.engine = engine
	env.echo = New(Deps{
		Engine:  engine,
		Limiter: opts.limiter,
		Metrics: promexport.NewExporter(engine).Handler(),
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) register(t *testing.T, username, password string) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/users/register", echo.Map{
		"username":         username,
		"email":            username + "@example.com",
		"password":         password,
		"password_confirm": password,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (env *testEnv) login(t *testing.T, username, password string) pomoAuth.TokenPair {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/token", echo.Map{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair pomoAuth.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)
	return pair
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	d, _ := body["detail"].(string)
	return d
}

func TestLoginProfileLogout(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123")

	rec := env.do(t, http.MethodGet, "/users/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, "alice", profile["username"])
	require.Equal(t, "alice@example.com", profile["email"])
	require.Equal(t, false, profile["is_admin"])

	rec = env.do(t, http.MethodPost, "/auth/logout", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Successfully logged out", decodeDetail(t, rec))

	rec = env.do(t, http.MethodGet, "/users/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token has been revoked", decodeDetail(t, rec))
	require.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))

	rec = env.do(t, http.MethodPost, "/auth/refresh", echo.Map{"refresh_token": pair.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginAcceptsForm(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")

	form := url.Values{"username": {"alice"}, "password": {"secret123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")

	rec := env.do(t, http.MethodPost, "/auth/token", echo.Map{"username": "alice", "password": "nope"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid username or password", decodeDetail(t, rec))

	rec = env.do(t, http.MethodPost, "/auth/token", echo.Map{"username": "bob", "password": "secret123"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid username or password", decodeDetail(t, rec))
}

func TestProfileRequiresToken(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/users/profile", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Not authenticated", decodeDetail(t, rec))

	rec = env.do(t, http.MethodGet, "/users/profile", nil, "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token validation error", decodeDetail(t, rec))
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123")

	rec := env.do(t, http.MethodPost, "/auth/refresh", echo.Map{"refresh_token": pair.AccessToken}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid token type", decodeDetail(t, rec))

	rec = env.do(t, http.MethodPost, "/auth/refresh", echo.Map{}, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", echo.Map{"refresh_token": pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshForDeletedAccountIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123")

	acc, err := env.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, env.repo.Delete(context.Background(), acc.ID))

	rec := env.do(t, http.MethodPost, "/auth/refresh", echo.Map{"refresh_token": pair.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "User not found", decodeDetail(t, rec))

	rec = env.do(t, http.MethodGet, "/users/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutAllRevokesEveryPair(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	first := env.login(t, "alice", "secret123")
	second := env.login(t, "alice", "secret123")

	rec := env.do(t, http.MethodPost, "/auth/logout-all", nil, second.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, tok := range []string{first.AccessToken, second.AccessToken} {
		rec = env.do(t, http.MethodGet, "/users/profile", nil, tok)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Token has been revoked", decodeDetail(t, rec))
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")

	rec := env.do(t, http.MethodPost, "/users/register", echo.Map{
		"username": "alice", "email": "other@example.com",
		"password": "pw123456", "password_confirm": "pw123456",
	}, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "User with this username already exists", decodeDetail(t, rec))

	rec = env.do(t, http.MethodPost, "/users/register", echo.Map{
		"username": "alice2", "email": "ALICE@example.com",
		"password": "pw123456", "password_confirm": "pw123456",
	}, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "User with this email already exists", decodeDetail(t, rec))

	rec = env.do(t, http.MethodPost, "/users/register", echo.Map{
		"username": "bob", "email": "bob@example.com",
		"password": "pw123456", "password_confirm": "different",
	}, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Passwords do not match", decodeDetail(t, rec))

	rec = env.do(t, http.MethodPost, "/users/register", echo.Map{
		"username": "bob", "email": "bob@example.com", "age": 12,
		"password": "pw123456", "password_confirm": "pw123456",
	}, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateChangePasswordDelete(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123")

	rec := env.do(t, http.MethodPut, "/users/update", echo.Map{"full_name": "Alice Smith"}, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, "Alice Smith", profile["full_name"])

	// Profile changes end every session.
	rec = env.do(t, http.MethodGet, "/users/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	env.tick()
	pair = env.login(t, "alice", "secret123")

	rec = env.do(t, http.MethodPatch, "/users/change-password", echo.Map{
		"old_password": "wrong", "new_password": "secret456", "new_password_confirm": "secret456",
	}, pair.AccessToken)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Invalid old password", decodeDetail(t, rec))

	rec = env.do(t, http.MethodPatch, "/users/change-password", echo.Map{
		"old_password": "secret123", "new_password": "secret456", "new_password_confirm": "secret456",
	}, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	env.tick()
	pair = env.login(t, "alice", "secret456")
	rec = env.do(t, http.MethodDelete, "/users/delete", echo.Map{"password": "secret123"}, pair.AccessToken)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Invalid password", decodeDetail(t, rec))

	rec = env.do(t, http.MethodDelete, "/users/delete", echo.Map{"password": "secret456"}, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "User successfully deleted", decodeDetail(t, rec))
	require.Equal(t, 0, env.repo.Len())
}

func TestRegisterSuperuserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123")

	body := echo.Map{
		"username": "root", "email": "root@example.com",
		"password": "rootpass1", "password_confirm": "rootpass1",
	}
	rec := env.do(t, http.MethodPost, "/users/register-superuser", body, pair.AccessToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	_, err := env.engine.CreateAccount(context.Background(), pomoAuth.CreateAccountRequest{
		Username: "admin", Email: "admin@example.com", Password: "adminpass1", IsAdmin: true,
	})
	require.NoError(t, err)
	admin := env.login(t, "admin", "adminpass1")

	rec = env.do(t, http.MethodPost, "/users/register-superuser", body, admin.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var profile map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, true, profile["is_admin"])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	env.mr.Close()
	rec = env.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreDownFailsClosed(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	pair := env.login(t, "alice", "secret123")

	env.mr.Close()
	rec := env.do(t, http.MethodGet, "/users/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "Service unavailable", decodeDetail(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.register(t, "alice", "secret123")
	env.login(t, "alice", "secret123")

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "pomoauth_login_success_total 1")
}

func TestRateLimitedRequests(t *testing.T) {
	limiter := NewIPLimiter(1, 2, 0, nil)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, envOptions{limiter: limiter})

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil, "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil, "").Code)

	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "Too many requests", decodeDetail(t, rec))
}

func TestAccountLifecycleOnSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := accountdb.Open(context.Background(), accountdb.Config{Driver: accountdb.DriverSQLite, DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	env := newTestEnv(t, envOptions{accounts: accountdb.New(db)})

	env.register(t, "alice", "secret123")
	rec := env.do(t, http.MethodPost, "/users/register", echo.Map{
		"username": "alice", "email": "new@example.com",
		"password": "pw123456", "password_confirm": "pw123456",
	}, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	pair := env.login(t, "alice", "secret123")
	rec = env.do(t, http.MethodGet, "/users/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/users/delete", echo.Map{"password": "secret123"}, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/token", echo.Map{"username": "alice", "password": "secret123"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
