package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/jwt"
	"github.com/MrEthical07/pomoAuth/security"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureValidate
	RefreshFailureAccountNotFound
	RefreshFailureLookup
	RefreshFailureIssue
)

// RefreshResult carries either the new pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Claims  *jwt.Claims
	Account account.Account
	Pair    security.TokenPair
}

type RefreshErrors struct {
	EngineNotReady  error
	AccountNotFound error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Validate  func(ctx context.Context, token string, kind jwt.TokenType) (*jwt.Claims, error)
	FindByID  func(context.Context, int64) (account.Account, error)
	IssuePair func(account.Account) (security.TokenPair, error)

	Errors RefreshErrors
}

// RunRefresh validates a refresh token and issues a new pair for its
// subject. The presented pair is not revoked.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Validate == nil || deps.FindByID == nil || deps.IssuePair == nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: deps.Errors.EngineNotReady}
	}

	claims, err := deps.Validate(ctx, refreshToken, jwt.TypeRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureValidate, Err: err}
	}

	id, err := account.ParseSubject(claims.Subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureAccountNotFound, Err: deps.Errors.AccountNotFound, Claims: claims}
	}
	acc, err := deps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureAccountNotFound, Err: deps.Errors.AccountNotFound, Claims: claims}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, Claims: claims}
	}

	pair, err := deps.IssuePair(acc)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Claims: claims}
	}
	return RefreshResult{Claims: claims, Account: acc, Pair: pair}
}
