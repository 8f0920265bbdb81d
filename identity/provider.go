package identity

import (
	"errors"
	"strings"
	"time"
)

// ErrUnsupportedProvider is returned for providers outside the closed set.
var ErrUnsupportedProvider = errors.New("unsupported oauth provider")

// Provider names an external identity provider.
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderYandex Provider = "YANDEX"
)

// Providers lists the supported providers.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderYandex}
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderYandex:
		return true
	}
	return false
}

// ParseProvider matches s case-insensitively against the supported set.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrUnsupportedProvider
	}
	return p, nil
}

// ExternalIdentity is what a provider asserts about a user. It is never
// persisted.
type ExternalIdentity struct {
	Provider    Provider
	SubjectID   string
	Email       string
	DisplayName string
	// Login is the provider-side handle. Only Yandex supplies it.
	Login     string
	Birthdate *time.Time
}
