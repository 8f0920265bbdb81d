package pomoAuth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/pomoAuth/identity"
	"github.com/MrEthical07/pomoAuth/oauth"
)

// fakeGoogle serves a token endpoint accepting "good-code" and a userinfo
// endpoint returning profile.
func fakeGoogle(t *testing.T, profile map[string]any) oauth.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_ = r.ParseForm()
			if r.FormValue("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "provider-token", "token_type": "bearer"})
		case "/userinfo":
			_ = json.NewEncoder(w).Encode(profile)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := oauth.NewGoogleClient(oauth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/auth/google/callback",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		HTTPClient:   srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGoogleClient: %v", err)
	}
	return c
}

func withGoogle(c oauth.Client) func(*Config, *Builder) {
	return func(_ *Config, b *Builder) { b.WithOAuthClient(c) }
}

func TestOAuthLoginProvisionsAccount(t *testing.T) {
	google := fakeGoogle(t, map[string]any{"sub": "1234567", "email": "carol@example.com", "name": "Carol Jones"})
	te := newTestEngine(t, withGoogle(google))
	ctx := context.Background()

	pair, err := te.OAuthLogin(ctx, identity.ProviderGoogle, "good-code")
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	claims, err := te.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Email != "carol@example.com" || claims.Username != "carol-jones" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if te.repo.Len() != 1 {
		t.Fatalf("expected one provisioned account, got %d", te.repo.Len())
	}
	if subjects := te.mail.Subjects(); len(subjects) != 1 || subjects[0] != "Welcome!" {
		t.Fatalf("expected welcome mail, got %v", subjects)
	}

	// Second login links to the same account.
	again, err := te.OAuthLogin(ctx, identity.ProviderGoogle, "good-code")
	if err != nil {
		t.Fatalf("second OAuthLogin: %v", err)
	}
	claims2, err := te.Validate(ctx, again.AccessToken)
	if err != nil || claims2.Subject != claims.Subject {
		t.Fatalf("expected same subject %s, got %+v (%v)", claims.Subject, claims2, err)
	}
	if te.repo.Len() != 1 || len(te.mail.Subjects()) != 1 {
		t.Fatal("second login must not provision again")
	}
}

func TestOAuthLoginLinksExistingByEmail(t *testing.T) {
	google := fakeGoogle(t, map[string]any{"sub": "1", "email": "ALICE@example.com", "name": "Someone Else"})
	te := newTestEngine(t, withGoogle(google))
	acc := te.seed(t, "alice", "secret123")

	pair, err := te.OAuthLogin(context.Background(), identity.ProviderGoogle, "good-code")
	if err != nil {
		t.Fatalf("OAuthLogin: %v", err)
	}
	claims, err := te.Validate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != acc.SubjectID() || claims.Username != "alice" {
		t.Fatalf("expected link to alice, got %+v", claims)
	}
}

func TestOAuthLoginFailures(t *testing.T) {
	google := fakeGoogle(t, map[string]any{"sub": "1", "email": "carol@example.com"})
	te := newTestEngine(t, withGoogle(google))
	ctx := context.Background()

	if _, err := te.OAuthLogin(ctx, identity.ProviderGoogle, "bad-code"); !errors.Is(err, ErrOAuthExchange) {
		t.Fatalf("expected ErrOAuthExchange, got %v", err)
	}
	if _, err := te.OAuthLogin(ctx, identity.ProviderYandex, "good-code"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("unconfigured provider: expected ErrUnsupportedProvider, got %v", err)
	}
	if _, err := te.OAuthLogin(ctx, identity.Provider("GITHUB"), "good-code"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("unknown provider: expected ErrUnsupportedProvider, got %v", err)
	}
	if te.repo.Len() != 0 {
		t.Fatal("failed logins must not provision")
	}
	if got := te.MetricsSnapshot().Counters[MetricOAuthLoginFailure]; got != 3 {
		t.Fatalf("expected 3 oauth failures, got %d", got)
	}
}

func TestOAuthAuthURL(t *testing.T) {
	google := fakeGoogle(t, nil)
	te := newTestEngine(t, withGoogle(google))

	state, err := NewOAuthState()
	if err != nil {
		t.Fatalf("NewOAuthState: %v", err)
	}
	if !ValidOAuthState(state) || ValidOAuthState("short") {
		t.Fatalf("state validation mismatch for %q", state)
	}

	u, err := te.OAuthAuthURL(identity.ProviderGoogle, state)
	if err != nil {
		t.Fatalf("OAuthAuthURL: %v", err)
	}
	if !strings.Contains(u, "state="+state) {
		t.Fatalf("expected state in %q", u)
	}
	if _, err := te.OAuthAuthURL(identity.ProviderYandex, state); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if ps := te.OAuthProviders(); len(ps) != 1 || ps[0] != identity.ProviderGoogle {
		t.Fatalf("unexpected providers: %v", ps)
	}
}
