package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/MrEthical07/pomoAuth/identity"
	"golang.org/x/oauth2"
)

var (
	// ErrExchangeFailed wraps failures of the code-for-token exchange.
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	// ErrProfileFailed wraps failures of the userinfo call.
	ErrProfileFailed = errors.New("oauth profile fetch failed")
)

const maxProfileBytes = 1 << 20

// Config is the per-provider client configuration. Empty URL fields fall
// back to the provider defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	HTTPClient   *http.Client // Optional custom HTTP client
}

// Client is one provider's authorization-code client.
type Client interface {
	Provider() identity.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (identity.ExternalIdentity, error)
}

type baseClient struct {
	provider    identity.Provider
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	// authScheme is the Authorization header scheme of the userinfo call.
	authScheme string
}

func newBaseClient(p identity.Provider, cfg Config, endpoint oauth2.Endpoint, userInfoURL string, scopes []string, authScheme string) (*baseClient, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth %s: client ID is required", p)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth %s: client secret is required", p)
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}
	if len(cfg.Scopes) > 0 {
		scopes = cfg.Scopes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &baseClient{
		provider: p,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
		authScheme:  authScheme,
	}, nil
}

func (c *baseClient) Provider() identity.Provider {
	return c.provider
}

func (c *baseClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

func (c *baseClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrExchangeFailed)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrExchangeFailed)
	}
	return token, nil
}

// fetchProfile GETs the userinfo endpoint and decodes the JSON body into dst.
func (c *baseClient) fetchProfile(ctx context.Context, token *oauth2.Token, dst any) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", ErrProfileFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	req.Header.Set("Authorization", c.authScheme+" "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: userinfo request failed with status %d", ErrProfileFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode user info: %v", ErrProfileFailed, err)
	}
	return nil
}

// Registry resolves clients by provider.
type Registry struct {
	clients map[identity.Provider]Client
}

// NewRegistry indexes clients by their provider. Later duplicates win.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[identity.Provider]Client, len(clients))}
	for _, c := range clients {
		if c != nil {
			r.clients[c.Provider()] = c
		}
	}
	return r
}

// Get returns the client for p or identity.ErrUnsupportedProvider.
func (r *Registry) Get(p identity.Provider) (Client, error) {
	if r == nil {
		return nil, identity.ErrUnsupportedProvider
	}
	c, ok := r.clients[p]
	if !ok {
		return nil, identity.ErrUnsupportedProvider
	}
	return c, nil
}

// Providers lists the registered providers in stable order.
func (r *Registry) Providers() []identity.Provider {
	if r == nil {
		return nil
	}
	out := make([]identity.Provider, 0, len(r.clients))
	for p := range r.clients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
