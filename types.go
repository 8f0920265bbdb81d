package pomoAuth

import (
	"time"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/internal/flows"
	"github.com/MrEthical07/pomoAuth/jwt"
)

// Claims is the decoded payload of a validated token.
type Claims = jwt.Claims

// Account is a local user record.
type Account = account.Account

// TokenPair is the result of login, refresh and oauth-login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	TokenID  string    `json:"-"`
	IssuedAt time.Time `json:"-"`
}

// CreateAccountRequest registers a password account.
type CreateAccountRequest = flows.AccountCreateRequest

// UpdateProfileRequest holds the profile fields to change. Nil fields are
// left as they are; at least one must be set.
type UpdateProfileRequest = flows.ProfileUpdate
