package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/MrEthical07/pomoAuth/jwt"
	"github.com/MrEthical07/pomoAuth/revocation"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrStoreUnavailable is the revocation store's sentinel.
	ErrStoreUnavailable = revocation.ErrStoreUnavailable
)

// RevocationCause tells the two revocation checks apart.
type RevocationCause string

const (
	CauseRevokedToken RevocationCause = "individual"
	CauseLogoutAll    RevocationCause = "logout_all"
)

// RevokedError is returned for revoked tokens. It matches ErrTokenRevoked
// under errors.Is.
type RevokedError struct {
	Cause   RevocationCause
	TokenID string
	Subject string
	Cutoff  int64
}

func (e *RevokedError) Error() string {
	return "token revoked (" + string(e.Cause) + ")"
}

func (e *RevokedError) Is(target error) bool {
	return target == ErrTokenRevoked
}

// RevocationCauseOf extracts the cause from a validation error.
func RevocationCauseOf(err error) (RevocationCause, bool) {
	var revoked *RevokedError
	if errors.As(err, &revoked) {
		return revoked.Cause, true
	}
	return "", false
}

// Store is the revocation capability the service depends on.
type Store interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	SetLogoutCutoff(ctx context.Context, accountID string, ttl time.Duration) (int64, error)
	GetLogoutCutoff(ctx context.Context, accountID string) (int64, bool, error)
}

// Principal is the account data a token pair is issued for.
type Principal struct {
	Subject  string
	Username string
	Email    string
	IsAdmin  bool
}

// TokenPair is one issuance: both tokens share TokenID and IssuedAt.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenID          string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Config controls token lifetimes and test seams.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
	NewTokenID func() string
	Logger     *slog.Logger
}

// Service composes the token codec and the revocation store.
type Service struct {
	codec      *jwt.Codec
	store      Store
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newTokenID func() string
	logger     *slog.Logger
}

// NewService validates cfg and wires the service.
func NewService(codec *jwt.Codec, store Store, cfg Config) (*Service, error) {
	if codec == nil {
		return nil, errors.New("security: codec is required")
	}
	if store == nil {
		return nil, errors.New("security: revocation store is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("security: token lifetimes must be positive")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("security: refresh lifetime must not be shorter than access lifetime")
	}

	s := &Service{
		codec:      codec,
		store:      store,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		newTokenID: cfg.NewTokenID,
		logger:     cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newTokenID == nil {
		s.newTokenID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s, nil
}

// RefreshTTL is the lifetime of refresh tokens and of revocation records.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// AccessTTL is the lifetime of access tokens.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssuePair signs an access and a refresh token sharing one fresh jti and
// one iat.
func (s *Service) IssuePair(p Principal) (TokenPair, error) {
	if p.Subject == "" {
		return TokenPair{}, errors.New("security: principal subject is required")
	}

	issuedAt := s.now().Truncate(time.Second)
	tokenID := s.newTokenID()
	accessExp := issuedAt.Add(s.accessTTL)
	refreshExp := issuedAt.Add(s.refreshTTL)

	registered := gjwt.RegisteredClaims{
		Subject:  p.Subject,
		ID:       tokenID,
		IssuedAt: gjwt.NewNumericDate(issuedAt),
	}

	access := jwt.Claims{
		Type: jwt.TypeAccess,
		AccessProfile: &jwt.AccessProfile{
			Username: p.Username,
			Email:    p.Email,
			IsAdmin:  p.IsAdmin,
		},
		RegisteredClaims: registered,
	}
	access.ExpiresAt = gjwt.NewNumericDate(accessExp)

	refresh := jwt.Claims{
		Type:             jwt.TypeRefresh,
		RegisteredClaims: registered,
	}
	refresh.ExpiresAt = gjwt.NewNumericDate(refreshExp)

	accessToken, err := s.codec.Encode(access)
	if err != nil {
		return TokenPair{}, fmt.Errorf("security: encode access token: %w", err)
	}
	refreshToken, err := s.codec.Encode(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("security: encode refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenID:          tokenID,
		IssuedAt:         issuedAt,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Validate runs the pipeline for token against the requested kind.
func (s *Service) Validate(ctx context.Context, token string, kind jwt.TokenType) (*jwt.Claims, error) {
	log := logging.FromContext(ctx, s.logger)

	claims, err := s.codec.Decode(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			log.DebugContext(ctx, "token rejected", "reason", "expired", "kind", string(kind))
			return nil, ErrTokenExpired
		}
		log.InfoContext(ctx, "token rejected", "reason", "malformed", "kind", string(kind), "error", err)
		return nil, ErrInvalidToken
	}

	if claims.Type != kind {
		log.InfoContext(ctx, "token rejected", "reason", "wrong_type", "want", string(kind), "got", string(claims.Type), "jti", claims.ID)
		return nil, ErrWrongTokenType
	}

	revoked, err := s.store.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		log.ErrorContext(ctx, "revocation lookup failed", "jti", claims.ID, "error", err)
		return nil, storeError(err)
	}
	if revoked {
		log.InfoContext(ctx, "token rejected", "reason", "revoked", "cause", string(CauseRevokedToken), "jti", claims.ID, "sub", claims.Subject)
		return nil, &RevokedError{Cause: CauseRevokedToken, TokenID: claims.ID, Subject: claims.Subject}
	}

	cutoff, ok, err := s.store.GetLogoutCutoff(ctx, claims.Subject)
	if err != nil {
		log.ErrorContext(ctx, "logout cutoff lookup failed", "sub", claims.Subject, "error", err)
		return nil, storeError(err)
	}
	if ok && cutoff >= claims.IssuedAt.Unix() {
		log.InfoContext(ctx, "token rejected", "reason", "revoked", "cause", string(CauseLogoutAll), "jti", claims.ID, "sub", claims.Subject, "cutoff", cutoff)
		return nil, &RevokedError{Cause: CauseLogoutAll, TokenID: claims.ID, Subject: claims.Subject, Cutoff: cutoff}
	}

	return claims, nil
}

// RevokeOne revokes both tokens sharing tokenID.
func (s *Service) RevokeOne(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return ErrInvalidToken
	}
	if err := s.store.RevokeToken(ctx, tokenID, s.refreshTTL); err != nil {
		return storeError(err)
	}
	logging.FromContext(ctx, s.logger).InfoContext(ctx, "token pair revoked", "jti", tokenID)
	return nil
}

// RevokeAll invalidates every token issued for subject up to and including
// the current second.
func (s *Service) RevokeAll(ctx context.Context, subject string) error {
	if subject == "" {
		return ErrInvalidToken
	}
	cutoff, err := s.store.SetLogoutCutoff(ctx, subject, s.refreshTTL)
	if err != nil {
		return storeError(err)
	}
	logging.FromContext(ctx, s.logger).InfoContext(ctx, "all tokens revoked", "sub", subject, "cutoff", cutoff)
	return nil
}

// storeError keeps every store failure under ErrStoreUnavailable, including
// unreadable records, so callers fail closed on one sentinel.
func storeError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
