package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const (
	credentialSize = 32
	stateSize      = 32
)

// NewRandomBytes fills a fresh slice of n bytes from crypto/rand.
func NewRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("random size must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// NewLocalCredential returns the throwaway secret assigned to accounts that
// are provisioned through an OAuth provider. Nobody ever learns it.
func NewLocalCredential() (string, error) {
	raw, err := NewRandomBytes(credentialSize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// NewOAuthState returns an unguessable authorization request state.
func NewOAuthState() (string, error) {
	raw, err := NewRandomBytes(stateSize)
	if err != nil {
		return "", err
	}
	// base64url, no padding, safe in query strings
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ValidOAuthState reports whether s has the shape produced by NewOAuthState.
func ValidOAuthState(s string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return len(raw) == stateSize
}
