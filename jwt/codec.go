package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed is returned for unparseable tokens, bad signatures,
	// unexpected algorithms and missing required claims.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned for authentic tokens whose exp has passed.
	ErrExpired = errors.New("token expired")
)

// TokenType is the value of the "type" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access_token"
	TypeRefresh TokenType = "refresh_token"
)

// Valid reports whether t is one of the known token kinds.
func (t TokenType) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Algorithm names an HMAC signing algorithm.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
)

// AccessProfile holds the account attributes embedded in access tokens only.
type AccessProfile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// Claims is the payload of both token kinds. A nil AccessProfile marks a
// refresh token on the wire.
type Claims struct {
	Type TokenType `json:"type"`
	*AccessProfile
	jwt.RegisteredClaims
}

// Config configures a Codec.
type Config struct {
	Secret    []byte
	Algorithm Algorithm
	Issuer    string
	Leeway    time.Duration
	// Now overrides the clock used for exp/iat checks. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies tokens with a single shared secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	issuer string
	parser *jwt.Parser
}

// NewCodec validates cfg and builds a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Now != nil {
		options = append(options, jwt.WithTimeFunc(cfg.Now))
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{
		secret: secret,
		method: method,
		issuer: cfg.Issuer,
		parser: jwt.NewParser(options...),
	}, nil
}

// Encode signs claims. The configured issuer is stamped when set.
func (c *Codec) Encode(claims Claims) (string, error) {
	if !claims.Type.Valid() {
		return "", fmt.Errorf("encode: unknown token type %q", claims.Type)
	}
	if claims.Type == TypeAccess && claims.AccessProfile == nil {
		return "", errors.New("encode: access token requires profile claims")
	}
	if claims.Type == TypeRefresh {
		claims.AccessProfile = nil
	}
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies token and returns its claims. Errors wrap ErrMalformed or
// ErrExpired.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}
	if err := checkRequired(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func checkRequired(claims *Claims) error {
	switch {
	case claims.Subject == "":
		return fmt.Errorf("%w: missing sub", ErrMalformed)
	case claims.ID == "":
		return fmt.Errorf("%w: missing jti", ErrMalformed)
	case claims.IssuedAt == nil:
		return fmt.Errorf("%w: missing iat", ErrMalformed)
	case !claims.Type.Valid():
		return fmt.Errorf("%w: invalid type", ErrMalformed)
	case claims.Type == TypeAccess && claims.AccessProfile == nil:
		return fmt.Errorf("%w: missing access profile", ErrMalformed)
	}
	return nil
}

func signingMethod(alg Algorithm) (jwt.SigningMethod, error) {
	switch Algorithm(strings.ToUpper(string(alg))) {
	case HS256, "":
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
}
