package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/oauth"
	"github.com/MrEthical07/pomoAuth/security"
)

// OAuthFailureKind classifies oauth-login failures.
type OAuthFailureKind int

const (
	OAuthFailureNone OAuthFailureKind = iota
	OAuthFailureUnsupportedProvider
	OAuthFailureExchange
	OAuthFailureReconcile
	OAuthFailureIssue
)

// OAuthResult carries either the issued pair or failure metadata.
type OAuthResult struct {
	Failure  OAuthFailureKind
	Err      error
	Provider identity.Provider
	Account  account.Account
	Pair     security.TokenPair
}

type OAuthMetrics struct {
	OAuthLoginSuccess int
	OAuthLoginFailure int
}

type OAuthEvents struct {
	OAuthLoginSuccess string
	OAuthLoginFailure string
}

type OAuthErrors struct {
	EngineNotReady      error
	UnsupportedProvider error
	Exchange            error
}

// OAuthDeps captures oauth-login flow dependencies.
type OAuthDeps struct {
	Client    func(identity.Provider) (oauth.Client, error)
	Reconcile func(context.Context, identity.ExternalIdentity) (account.Account, error)
	IssuePair func(account.Account) (security.TokenPair, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics OAuthMetrics
	Events  OAuthEvents
	Errors  OAuthErrors
}

// RunOAuthLogin exchanges code with the provider, reconciles the asserted
// identity with a local account and issues a pair for it.
func RunOAuthLogin(ctx context.Context, provider identity.Provider, code string, deps OAuthDeps) OAuthResult {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Client == nil || deps.Reconcile == nil || deps.IssuePair == nil {
		return OAuthResult{Failure: OAuthFailureIssue, Err: deps.Errors.EngineNotReady}
	}

	fail := func(kind OAuthFailureKind, err error) OAuthResult {
		deps.MetricInc(deps.Metrics.OAuthLoginFailure)
		deps.EmitAudit(ctx, deps.Events.OAuthLoginFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"provider": string(provider)}
		})
		return OAuthResult{Failure: kind, Err: err, Provider: provider}
	}

	if !provider.Valid() {
		return fail(OAuthFailureUnsupportedProvider, deps.Errors.UnsupportedProvider)
	}
	client, err := deps.Client(provider)
	if err != nil {
		return fail(OAuthFailureUnsupportedProvider, deps.Errors.UnsupportedProvider)
	}

	token, err := client.Exchange(ctx, code)
	if err != nil {
		return fail(OAuthFailureExchange, fmt.Errorf("%w: %v", deps.Errors.Exchange, err))
	}
	ext, err := client.FetchProfile(ctx, token)
	if err != nil {
		return fail(OAuthFailureExchange, fmt.Errorf("%w: %v", deps.Errors.Exchange, err))
	}

	acc, err := deps.Reconcile(ctx, ext)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnsupportedProvider):
			return fail(OAuthFailureUnsupportedProvider, deps.Errors.UnsupportedProvider)
		case errors.Is(err, identity.ErrInvalidIdentity):
			return fail(OAuthFailureExchange, fmt.Errorf("%w: %v", deps.Errors.Exchange, err))
		}
		return fail(OAuthFailureReconcile, err)
	}

	pair, err := deps.IssuePair(acc)
	if err != nil {
		return fail(OAuthFailureIssue, err)
	}

	deps.MetricInc(deps.Metrics.OAuthLoginSuccess)
	deps.EmitAudit(ctx, deps.Events.OAuthLoginSuccess, true, acc.SubjectID(), pair.TokenID, nil, func() map[string]string {
		return map[string]string{"provider": string(provider)}
	})
	return OAuthResult{Provider: provider, Account: acc, Pair: pair}
}
