package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/mail"
)

type AccountCreateRequest struct {
	Username string
	Email    string
	Password string
	FullName string
	Age      *int
	IsAdmin  bool
}

// ProfileUpdate holds the fields to change; nil means unchanged.
type ProfileUpdate struct {
	Username *string
	Email    *string
	FullName *string
	Age      *int
}

func (u ProfileUpdate) empty() bool {
	return u.Username == nil && u.Email == nil && u.FullName == nil && u.Age == nil
}

type AccountMetrics struct {
	AccountCreated   int
	AccountDuplicate int
	ProfileUpdated   int
	PasswordChanged  int
	AccountDeleted   int
}

type AccountEvents struct {
	AccountCreated  string
	ProfileUpdated  string
	PasswordChanged string
	AccountDeleted  string
}

type AccountErrors struct {
	EngineNotReady  error
	InvalidAccount  error
	InvalidPassword error
	AccountNotFound error
}

// AccountDeps captures account lifecycle dependencies.
type AccountDeps struct {
	Repo           account.Repository
	HashPassword   func(string) (string, error)
	VerifyPassword func(secret, hash string) bool
	// RevokeAll sets the logout cutoff for a subject.
	RevokeAll func(ctx context.Context, subject string) error
	Notify    func(ctx context.Context, kind mail.Kind, acc account.Account)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

func (d *AccountDeps) defaults() error {
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Notify == nil {
		d.Notify = func(context.Context, mail.Kind, account.Account) {}
	}
	if d.Repo == nil || d.HashPassword == nil || d.VerifyPassword == nil || d.RevokeAll == nil {
		return d.Errors.EngineNotReady
	}
	return nil
}

// RunCreateAccount registers a password account and sends the welcome mail.
func RunCreateAccount(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (account.Account, error) {
	if err := deps.defaults(); err != nil {
		return account.Account{}, err
	}

	acc := account.Account{
		Username: account.NormalizeUsername(req.Username),
		Email:    account.NormalizeEmail(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Age:      req.Age,
		IsAdmin:  req.IsAdmin,
	}
	if req.Password == "" {
		return account.Account{}, fmt.Errorf("%w: password must not be empty", deps.Errors.InvalidAccount)
	}
	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return account.Account{}, err
	}
	acc.PasswordHash = hash
	if err := account.Validate(acc); err != nil {
		return account.Account{}, invalid(err, deps.Errors.InvalidAccount)
	}

	if err := deps.Repo.Insert(ctx, &acc); err != nil {
		if errors.Is(err, account.ErrUsernameTaken) || errors.Is(err, account.ErrEmailTaken) {
			deps.MetricInc(deps.Metrics.AccountDuplicate)
		}
		return account.Account{}, err
	}

	deps.MetricInc(deps.Metrics.AccountCreated)
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, acc.SubjectID(), "", nil, nil)
	deps.Notify(ctx, mail.KindWelcome, acc)
	return acc, nil
}

// RunUpdateProfile applies upd and invalidates every outstanding token,
// since access tokens embed username and email. The cutoff is written before
// the update so a store failure leaves the old profile in place.
func RunUpdateProfile(ctx context.Context, id int64, upd ProfileUpdate, deps AccountDeps) (account.Account, error) {
	if err := deps.defaults(); err != nil {
		return account.Account{}, err
	}
	if upd.empty() {
		return account.Account{}, fmt.Errorf("%w: at least one field must be provided", deps.Errors.InvalidAccount)
	}

	acc, err := findAccount(ctx, id, deps)
	if err != nil {
		return account.Account{}, err
	}
	prev := acc
	if upd.Username != nil {
		acc.Username = account.NormalizeUsername(*upd.Username)
	}
	if upd.Email != nil {
		acc.Email = account.NormalizeEmail(*upd.Email)
	}
	if upd.FullName != nil {
		acc.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Age != nil {
		acc.Age = upd.Age
	}
	if err := account.Validate(acc); err != nil {
		return account.Account{}, invalid(err, deps.Errors.InvalidAccount)
	}
	if err := ensureAvailable(ctx, prev, acc, deps.Repo); err != nil {
		return account.Account{}, err
	}

	if err := deps.RevokeAll(ctx, acc.SubjectID()); err != nil {
		return account.Account{}, err
	}
	if err := deps.Repo.Update(ctx, &acc); err != nil {
		return account.Account{}, err
	}

	deps.MetricInc(deps.Metrics.ProfileUpdated)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdated, true, acc.SubjectID(), "", nil, nil)
	return acc, nil
}

// RunChangePassword replaces the credential after checking the current one
// and logs the account out everywhere. The cutoff is written first so a
// store failure keeps the old credential.
func RunChangePassword(ctx context.Context, id int64, oldPassword, newPassword string, deps AccountDeps) error {
	if err := deps.defaults(); err != nil {
		return err
	}

	acc, err := findAccount(ctx, id, deps)
	if err != nil {
		return err
	}
	if !deps.VerifyPassword(oldPassword, acc.PasswordHash) {
		deps.EmitAudit(ctx, deps.Events.PasswordChanged, false, acc.SubjectID(), "", deps.Errors.InvalidPassword, nil)
		return deps.Errors.InvalidPassword
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password must not be empty", deps.Errors.InvalidAccount)
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	if err := deps.RevokeAll(ctx, acc.SubjectID()); err != nil {
		return err
	}
	if err := deps.Repo.Update(ctx, &acc); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.PasswordChanged)
	deps.EmitAudit(ctx, deps.Events.PasswordChanged, true, acc.SubjectID(), "", nil, nil)
	deps.Notify(ctx, mail.KindPasswordChanged, acc)
	return nil
}

// RunDeleteAccount removes the account after checking its password. The
// cutoff is written first so a store failure leaves the account intact.
func RunDeleteAccount(ctx context.Context, id int64, password string, deps AccountDeps) error {
	if err := deps.defaults(); err != nil {
		return err
	}

	acc, err := findAccount(ctx, id, deps)
	if err != nil {
		return err
	}
	if !deps.VerifyPassword(password, acc.PasswordHash) {
		deps.EmitAudit(ctx, deps.Events.AccountDeleted, false, acc.SubjectID(), "", deps.Errors.InvalidPassword, nil)
		return deps.Errors.InvalidPassword
	}

	if err := deps.RevokeAll(ctx, acc.SubjectID()); err != nil {
		return err
	}
	if err := deps.Repo.Delete(ctx, acc.ID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.AccountNotFound
		}
		return err
	}

	deps.MetricInc(deps.Metrics.AccountDeleted)
	deps.EmitAudit(ctx, deps.Events.AccountDeleted, true, acc.SubjectID(), "", nil, nil)
	deps.Notify(ctx, mail.KindGoodbye, acc)
	return nil
}

func findAccount(ctx context.Context, id int64, deps AccountDeps) (account.Account, error) {
	acc, err := deps.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, deps.Errors.AccountNotFound
		}
		return account.Account{}, err
	}
	return acc, nil
}

// ensureAvailable rejects a changed username or email already held by
// another account, before any tokens are revoked. The repository still
// enforces uniqueness on write.
func ensureAvailable(ctx context.Context, prev, next account.Account, repo account.Repository) error {
	if next.Username != prev.Username {
		if other, err := repo.FindByUsername(ctx, next.Username); err == nil && other.ID != next.ID {
			return account.ErrUsernameTaken
		} else if err != nil && !errors.Is(err, account.ErrNotFound) {
			return err
		}
	}
	if next.Email != prev.Email {
		if other, err := repo.FindByEmail(ctx, next.Email); err == nil && other.ID != next.ID {
			return account.ErrEmailTaken
		} else if err != nil && !errors.Is(err, account.ErrNotFound) {
			return err
		}
	}
	return nil
}

// invalid rewraps an account.ErrInvalid detail under the host sentinel.
func invalid(err, sentinel error) error {
	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, strings.TrimPrefix(err.Error(), account.ErrInvalid.Error()+": "))
}
