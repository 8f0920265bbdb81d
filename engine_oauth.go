package pomoAuth

import (
	"context"

	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/internal"
)

// NewOAuthState returns a random state value for an authorization request.
func NewOAuthState() (string, error) {
	return internal.NewOAuthState()
}

// ValidOAuthState reports whether s looks like a value from NewOAuthState.
func ValidOAuthState(s string) bool {
	return internal.ValidOAuthState(s)
}

// OAuthProviders lists the providers with a configured client.
func (e *Engine) OAuthProviders() []identity.Provider {
	if e == nil {
		return nil
	}
	return e.providers.Providers()
}

// OAuthAuthURL returns the provider consent page URL carrying state.
func (e *Engine) OAuthAuthURL(provider identity.Provider, state string) (string, error) {
	if e == nil || e.providers == nil {
		return "", ErrEngineNotReady
	}
	client, err := e.providers.Get(provider)
	if err != nil {
		return "", ErrUnsupportedProvider
	}
	return client.AuthCodeURL(state), nil
}

// OAuthLogin exchanges an authorization code, links or provisions the
// account by email and issues a pair for it.
//
// Provider failures are returned wrapped in ErrOAuthExchange.
func (e *Engine) OAuthLogin(ctx context.Context, provider identity.Provider, code string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.OAuthLogin(ctx, provider, code)
	if res.Err != nil {
		e.log(ctx).WarnContext(ctx, "oauth login failed", "provider", string(provider), "error", res.Err)
		return nil, res.Err
	}
	return e.tokenPair(res.Pair), nil
}
