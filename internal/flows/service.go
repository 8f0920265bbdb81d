package flows

import (
	"context"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Refresh.Validate != nil
}

func (s Service) Login(ctx context.Context, username, password string) LoginResult {
	return RunLogin(ctx, username, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, claims *jwt.Claims) error {
	return RunLogout(ctx, claims, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, accountID int64) error {
	return RunLogoutAll(ctx, accountID, s.deps.Logout)
}

func (s Service) OAuthLogin(ctx context.Context, provider identity.Provider, code string) OAuthResult {
	return RunOAuthLogin(ctx, provider, code, s.deps.OAuth)
}

func (s Service) CreateAccount(ctx context.Context, req AccountCreateRequest) (account.Account, error) {
	return RunCreateAccount(ctx, req, s.deps.Account)
}

func (s Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (account.Account, error) {
	return RunUpdateProfile(ctx, id, upd, s.deps.Account)
}

func (s Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	return RunChangePassword(ctx, id, oldPassword, newPassword, s.deps.Account)
}

func (s Service) DeleteAccount(ctx context.Context, id int64, password string) error {
	return RunDeleteAccount(ctx, id, password, s.deps.Account)
}
