package pomoAuth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	internalaudit "github.com/MrEthical07/pomoAuth/internal/audit"
	"github.com/MrEthical07/pomoAuth/internal/flows"
	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/MrEthical07/pomoAuth/internal/rate"
	"github.com/MrEthical07/pomoAuth/jwt"
	"github.com/MrEthical07/pomoAuth/mail"
	"github.com/MrEthical07/pomoAuth/oauth"
	"github.com/MrEthical07/pomoAuth/password"
	"github.com/MrEthical07/pomoAuth/revocation"
	"github.com/MrEthical07/pomoAuth/security"
)

// Engine is the caller-facing orchestrator: login, refresh, validate,
// logout, logout-all, oauth-login and the account lifecycle.
type Engine struct {
	config     Config
	metrics    *Metrics
	audit      *internalaudit.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	hasher     *password.Hasher
	dummyHash  string
	store      *revocation.Store
	tokens     *security.Service
	limiter    *rate.Limiter
	accounts   account.Repository
	reconciler *identity.Reconciler
	providers  *oauth.Registry
	notifier   *mail.Notifier
	flows      flows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.tokens != nil && e.flows.Initialized()
}

// Login verifies username and password and issues a token pair whose
// subject is the account id.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, username, password)
	if res.Err != nil {
		if res.Failure == flows.LoginFailureLookup || res.Failure == flows.LoginFailureIssue {
			e.log(ctx).ErrorContext(ctx, "login failed", "error", res.Err)
		}
		return nil, res.Err
	}
	return e.tokenPair(res.Pair), nil
}

// Refresh validates a refresh token and issues a new pair for its subject.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Err != nil {
		e.metricInc(MetricRefreshFailure)
		accountID := ""
		if res.Claims != nil {
			accountID = res.Claims.Subject
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, "", res.Err, nil)
		if res.Failure == flows.RefreshFailureLookup || res.Failure == flows.RefreshFailureIssue {
			e.log(ctx).ErrorContext(ctx, "refresh failed", "error", res.Err)
		}
		return nil, res.Err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Account.SubjectID(), res.Pair.TokenID, nil, nil)
	return e.tokenPair(res.Pair), nil
}

// Validate checks an access token: signature and expiry, token type,
// individual revocation, then the logout-all cutoff.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	return e.validate(ctx, accessToken, jwt.TypeAccess)
}

// ValidateRefresh is Validate for refresh tokens.
func (e *Engine) ValidateRefresh(ctx context.Context, refreshToken string) (*Claims, error) {
	return e.validate(ctx, refreshToken, jwt.TypeRefresh)
}

func (e *Engine) validate(ctx context.Context, token string, kind jwt.TokenType) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.tokens.Validate(ctx, token, kind)
	e.recordValidation(ctx, err)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (e *Engine) recordValidation(ctx context.Context, err error) {
	e.metricInc(validationMetric(err))

	var revoked *security.RevokedError
	if errors.As(err, &revoked) {
		e.emitAudit(ctx, auditEventTokenRevoked, false, revoked.Subject, revoked.TokenID, err, func() map[string]string {
			return map[string]string{"cause": string(revoked.Cause)}
		})
	}
}

// Logout revokes the pair the validated claims belong to. Repeating it is
// harmless.
func (e *Engine) Logout(ctx context.Context, claims *Claims) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.flows.Logout(ctx, claims); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}

// LogoutAll invalidates every token issued to accountID up to and including
// the current second.
func (e *Engine) LogoutAll(ctx context.Context, accountID int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.flows.LogoutAll(ctx, accountID); err != nil {
		return err
	}
	e.metricInc(MetricLogoutAll)
	return nil
}

// Ping checks the revocation store and returns its round-trip time.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

// AccessTTL returns the configured access token lifetime.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

func (e *Engine) tokenPair(p security.TokenPair) *TokenPair {
	return &TokenPair{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(p.AccessExpiresAt.Sub(p.IssuedAt) / time.Second),
		TokenID:      p.TokenID,
		IssuedAt:     p.IssuedAt,
	}
}

func (e *Engine) issuePair(acc account.Account) (security.TokenPair, error) {
	return e.tokens.IssuePair(security.Principal{
		Subject:  acc.SubjectID(),
		Username: acc.Username,
		Email:    acc.Email,
		IsAdmin:  acc.IsAdmin,
	})
}

func (e *Engine) notify(ctx context.Context, kind mail.Kind, acc account.Account) {
	if e.notifier == nil {
		return
	}
	// Failures are logged by the notifier; the account operation stands.
	_ = e.notifier.Notify(ctx, kind, acc.Username, acc.Email)
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, e.logger)
}
