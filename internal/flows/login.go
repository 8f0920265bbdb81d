package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/internal/rate"
	"github.com/MrEthical07/pomoAuth/security"
)

// LoginFailureKind classifies login failures for metrics and logs.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLimiterUnavailable
	LoginFailureInvalidCredentials
	LoginFailureLookup
	LoginFailureIssue
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Account account.Account
	Pair    security.TokenPair
}

// LoginRateLimiter is the failed-login budget.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username string) error
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	PasswordUpgraded int
}

type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginRateLimited   error
	StoreUnavailable   error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool
	// DummyHash is verified against when the username is unknown so both
	// failure paths cost one hash verification.
	DummyHash string

	ClientIPFromContext func(context.Context) string
	RateLimiter         LoginRateLimiter

	FindByUsername func(context.Context, string) (account.Account, error)
	UpdateAccount  func(context.Context, *account.Account) error
	VerifyPassword func(secret, hash string) bool
	NeedsUpgrade   func(hash string) bool
	HashPassword   func(string) (string, error)
	IssuePair      func(account.Account) (security.TokenPair, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies username and password and issues a fresh token pair.
// Unknown username and wrong password are indistinguishable to the caller.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.FindByUsername == nil || deps.VerifyPassword == nil || deps.IssuePair == nil {
		return LoginResult{Failure: LoginFailureIssue, Err: deps.Errors.EngineNotReady}
	}

	ip := deps.ClientIPFromContext(ctx)
	username = account.NormalizeUsername(username)
	identMeta := func() map[string]string { return map[string]string{"identifier": username} }

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, username, ip); err != nil {
			return limiterFailure(ctx, err, deps, identMeta)
		}
	}

	fail := func(accountID, reason string) LoginResult {
		if deps.RateLimiter != nil {
			if err := deps.RateLimiter.IncrementLogin(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
				deps.Warn("pomoAuth: failed login counter not updated", "error", err)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, accountID, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": username, "reason": reason}
		})
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: deps.Errors.InvalidCredentials}
	}

	if password == "" {
		return fail("", "empty_password")
	}

	acc, err := deps.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return LoginResult{Failure: LoginFailureLookup, Err: err}
		}
		if deps.DummyHash != "" {
			deps.VerifyPassword(password, deps.DummyHash)
		}
		return fail("", "account_not_found")
	}

	if !deps.VerifyPassword(password, acc.PasswordHash) {
		return fail(acc.SubjectID(), "password_mismatch")
	}

	if deps.UpgradeOnLogin && deps.NeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdateAccount != nil && deps.NeedsUpgrade(acc.PasswordHash) {
		if upgraded, err := deps.HashPassword(password); err == nil {
			next := acc
			next.PasswordHash = upgraded
			if err := deps.UpdateAccount(ctx, &next); err != nil {
				deps.Warn("pomoAuth: password hash upgrade update failed", "account_id", acc.ID, "error", err)
			} else {
				acc = next
				deps.MetricInc(deps.Metrics.PasswordUpgraded)
			}
		} else {
			deps.Warn("pomoAuth: password hash upgrade generation failed", "account_id", acc.ID, "error", err)
		}
	}
	password = ""

	pair, err := deps.IssuePair(acc)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, username); err != nil {
			deps.Warn("pomoAuth: failed login counter not reset", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acc.SubjectID(), pair.TokenID, nil, nil)
	return LoginResult{Account: acc, Pair: pair}
}

func limiterFailure(ctx context.Context, err error, deps LoginDeps, meta func() map[string]string) LoginResult {
	if errors.Is(err, rate.ErrRateLimited) {
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", "", deps.Errors.LoginRateLimited, meta)
		return LoginResult{Failure: LoginFailureRateLimited, Err: deps.Errors.LoginRateLimited}
	}
	return LoginResult{Failure: LoginFailureLimiterUnavailable, Err: deps.Errors.StoreUnavailable}
}
