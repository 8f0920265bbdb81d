package pomoAuth

import (
	"errors"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/revocation"
	"github.com/MrEthical07/pomoAuth/security"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown username or
	// a wrong password. The two are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = security.ErrInvalidToken
	// ErrTokenExpired is returned for authentic tokens past exp.
	ErrTokenExpired = security.ErrTokenExpired
	// ErrTokenRevoked covers both individual and logout-all revocation.
	ErrTokenRevoked = security.ErrTokenRevoked
	// ErrWrongTokenType is returned when a refresh token is presented as an
	// access token or the other way round.
	ErrWrongTokenType = security.ErrWrongTokenType
	// ErrAccountNotFound is returned when a token subject or account id no
	// longer exists.
	ErrAccountNotFound = account.ErrNotFound
	// ErrUnsupportedProvider is returned for providers outside the closed set
	// or without a configured client.
	ErrUnsupportedProvider = identity.ErrUnsupportedProvider
	// ErrStoreUnavailable is returned when the revocation store cannot be
	// reached. Validation fails closed on it.
	ErrStoreUnavailable = revocation.ErrStoreUnavailable

	// ErrOAuthExchange wraps provider code exchange and profile failures.
	ErrOAuthExchange = errors.New("oauth exchange failed")
	// ErrLoginRateLimited is returned after too many failed logins.
	ErrLoginRateLimited = errors.New("login rate limited")
	ErrUsernameTaken    = account.ErrUsernameTaken
	ErrEmailTaken       = account.ErrEmailTaken
	// ErrInvalidAccount wraps field validation failures.
	ErrInvalidAccount = account.ErrInvalid
	// ErrInvalidPassword is returned when the current password does not
	// match on password change or account deletion.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrEngineNotReady is returned by methods of a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not ready")
)
