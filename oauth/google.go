package oauth

import (
	"context"

	"github.com/MrEthical07/pomoAuth/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleClient implements Client for Google accounts.
type GoogleClient struct {
	*baseClient
}

// NewGoogleClient creates a Google client. Default scopes are openid,
// email and profile.
func NewGoogleClient(cfg Config) (*GoogleClient, error) {
	base, err := newBaseClient(
		identity.ProviderGoogle,
		cfg,
		google.Endpoint,
		googleUserInfoURL,
		[]string{"openid", "email", "profile"},
		"Bearer",
	)
	if err != nil {
		return nil, err
	}
	return &GoogleClient{baseClient: base}, nil
}

// FetchProfile calls Google's userinfo endpoint.
func (c *GoogleClient) FetchProfile(ctx context.Context, token *oauth2.Token) (identity.ExternalIdentity, error) {
	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.fetchProfile(ctx, token, &info); err != nil {
		return identity.ExternalIdentity{}, err
	}

	return identity.ExternalIdentity{
		Provider:    identity.ProviderGoogle,
		SubjectID:   info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
