package oauth

import (
	"context"
	"time"

	"github.com/MrEthical07/pomoAuth/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/yandex"
)

const (
	yandexUserInfoURL = "https://login.yandex.ru/info?format=json"
	yandexDateLayout  = "2006-01-02"
)

// YandexClient implements Client for Yandex ID.
type YandexClient struct {
	*baseClient
}

// NewYandexClient creates a Yandex client. Yandex grants scopes configured
// on the application, so none are requested by default.
func NewYandexClient(cfg Config) (*YandexClient, error) {
	base, err := newBaseClient(
		identity.ProviderYandex,
		cfg,
		yandex.Endpoint,
		yandexUserInfoURL,
		nil,
		"OAuth",
	)
	if err != nil {
		return nil, err
	}
	return &YandexClient{baseClient: base}, nil
}

// FetchProfile calls the Yandex ID info endpoint.
func (c *YandexClient) FetchProfile(ctx context.Context, token *oauth2.Token) (identity.ExternalIdentity, error) {
	var info struct {
		ID           string `json:"id"`
		Login        string `json:"login"`
		DefaultEmail string `json:"default_email"`
		RealName     string `json:"real_name"`
		Birthday     string `json:"birthday"`
	}
	if err := c.fetchProfile(ctx, token, &info); err != nil {
		return identity.ExternalIdentity{}, err
	}

	ext := identity.ExternalIdentity{
		Provider:    identity.ProviderYandex,
		SubjectID:   info.ID,
		Email:       info.DefaultEmail,
		DisplayName: info.RealName,
		Login:       info.Login,
	}
	// Birthday is optional and may be partially hidden by the user.
	if birth, err := time.Parse(yandexDateLayout, info.Birthday); err == nil {
		ext.Birthdate = &birth
	}
	return ext, nil
}
