package pomoAuth

import (
	"context"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/internal/flows"
	"github.com/MrEthical07/pomoAuth/mail"
	"github.com/MrEthical07/pomoAuth/oauth"
)

func (e *Engine) initFlowService() {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	emitAudit := func(ctx context.Context, event string, success bool, accountID, tokenID string, err error, meta func() map[string]string) {
		e.emitAudit(ctx, event, success, accountID, tokenID, err, meta)
	}
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }

	login := flows.LoginDeps{
		UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
		DummyHash:           e.dummyHash,
		ClientIPFromContext: clientIPFromContext,
		FindByUsername:      e.accounts.FindByUsername,
		UpdateAccount:       e.accounts.Update,
		VerifyPassword:      e.hasher.Verify,
		NeedsUpgrade:        e.hasher.NeedsUpgrade,
		HashPassword:        e.hasher.Hash,
		IssuePair:           e.issuePair,
		MetricInc:           metricInc,
		EmitAudit:           emitAudit,
		Warn:                warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			LoginRateLimited:   ErrLoginRateLimited,
			StoreUnavailable:   ErrStoreUnavailable,
		},
	}
	// A nil *rate.Limiter must not become a non-nil interface.
	if e.limiter != nil {
		login.RateLimiter = e.limiter
	}

	e.flows = flows.New(flows.Deps{
		Login: login,
		Refresh: flows.RefreshDeps{
			Validate:  e.tokens.Validate,
			FindByID:  e.accounts.FindByID,
			IssuePair: e.issuePair,
			Errors: flows.RefreshErrors{
				EngineNotReady:  ErrEngineNotReady,
				AccountNotFound: ErrAccountNotFound,
			},
		},
		Logout: flows.LogoutDeps{
			RevokeOne: e.tokens.RevokeOne,
			RevokeAll: e.tokens.RevokeAll,
			EmitAudit: emitAudit,
			Events: flows.LogoutEvents{
				Logout:    auditEventLogout,
				LogoutAll: auditEventLogoutAll,
			},
			Errors: flows.LogoutErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidToken:   ErrInvalidToken,
			},
		},
		OAuth: flows.OAuthDeps{
			Client:    func(p identity.Provider) (oauth.Client, error) { return e.providers.Get(p) },
			Reconcile: e.reconciler.Reconcile,
			IssuePair: e.issuePair,
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Metrics: flows.OAuthMetrics{
				OAuthLoginSuccess: int(MetricOAuthLoginSuccess),
				OAuthLoginFailure: int(MetricOAuthLoginFailure),
			},
			Events: flows.OAuthEvents{
				OAuthLoginSuccess: auditEventOAuthLoginSuccess,
				OAuthLoginFailure: auditEventOAuthLoginFailure,
			},
			Errors: flows.OAuthErrors{
				EngineNotReady:      ErrEngineNotReady,
				UnsupportedProvider: ErrUnsupportedProvider,
				Exchange:            ErrOAuthExchange,
			},
		},
		Account: flows.AccountDeps{
			Repo:           e.accounts,
			HashPassword:   e.hasher.Hash,
			VerifyPassword: e.hasher.Verify,
			RevokeAll:      e.tokens.RevokeAll,
			Notify: func(ctx context.Context, kind mail.Kind, acc account.Account) {
				e.notify(ctx, kind, acc)
			},
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Metrics: flows.AccountMetrics{
				AccountCreated:   int(MetricAccountCreated),
				AccountDuplicate: int(MetricAccountDuplicate),
				ProfileUpdated:   int(MetricProfileUpdated),
				PasswordChanged:  int(MetricPasswordChanged),
				AccountDeleted:   int(MetricAccountDeleted),
			},
			Events: flows.AccountEvents{
				AccountCreated:  auditEventAccountCreated,
				ProfileUpdated:  auditEventProfileUpdated,
				PasswordChanged: auditEventPasswordChanged,
				AccountDeleted:  auditEventAccountDeleted,
			},
			Errors: flows.AccountErrors{
				EngineNotReady:  ErrEngineNotReady,
				InvalidAccount:  ErrInvalidAccount,
				InvalidPassword: ErrInvalidPassword,
				AccountNotFound: ErrAccountNotFound,
			},
		},
	})
}
