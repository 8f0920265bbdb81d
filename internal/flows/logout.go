package flows

import (
	"context"
	"strconv"

	"github.com/MrEthical07/pomoAuth/jwt"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	RevokeOne func(ctx context.Context, tokenID string) error
	RevokeAll func(ctx context.Context, subject string) error

	EmitAudit AuditFunc
	Events    LogoutEvents
	Errors    LogoutErrors
}

type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

type LogoutErrors struct {
	EngineNotReady error
	InvalidToken   error
}

// RunLogout revokes the pair identified by claims. Repeating it is harmless.
func RunLogout(ctx context.Context, claims *jwt.Claims, deps LogoutDeps) error {
	if deps.RevokeOne == nil {
		return deps.Errors.EngineNotReady
	}
	if claims == nil || claims.ID == "" {
		return deps.Errors.InvalidToken
	}
	if err := deps.RevokeOne(ctx, claims.ID); err != nil {
		return err
	}
	if deps.EmitAudit != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, true, claims.Subject, claims.ID, nil, nil)
	}
	return nil
}

// RunLogoutAll sets the logout cutoff for accountID.
func RunLogoutAll(ctx context.Context, accountID int64, deps LogoutDeps) error {
	if deps.RevokeAll == nil {
		return deps.Errors.EngineNotReady
	}
	subject := strconv.FormatInt(accountID, 10)
	if err := deps.RevokeAll(ctx, subject); err != nil {
		return err
	}
	if deps.EmitAudit != nil {
		deps.EmitAudit(ctx, deps.Events.LogoutAll, true, subject, "", nil, nil)
	}
	return nil
}
