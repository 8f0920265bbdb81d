package pomoAuth

import (
	"context"
	"errors"
)

// CreateAccount registers a password account and sends the welcome mail.
// Conflicts return ErrUsernameTaken or ErrEmailTaken.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acc, err := e.flows.CreateAccount(ctx, req)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrInvalidAccount) {
			return nil, err
		}
		e.log(ctx).ErrorContext(ctx, "account creation failed", "error", err)
		return nil, err
	}
	return &acc, nil
}

// GetAccount loads an account by id.
func (e *Engine) GetAccount(ctx context.Context, id int64) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acc, err := e.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpdateProfile changes profile fields and logs the account out of every
// session, since access tokens carry username and email.
func (e *Engine) UpdateProfile(ctx context.Context, id int64, req UpdateProfileRequest) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acc, err := e.flows.UpdateProfile(ctx, id, req)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// ChangePassword replaces the credential after checking oldPassword. Every
// outstanding token of the account is revoked.
func (e *Engine) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.ChangePassword(ctx, id, oldPassword, newPassword)
}

// DeleteAccount removes the account after checking its password and
// revokes every outstanding token.
func (e *Engine) DeleteAccount(ctx context.Context, id int64, password string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.DeleteAccount(ctx, id, password)
}
