package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/internal"
	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/gosimple/slug"
)

var (
	// ErrUsernameUnavailable is returned when both username candidates are
	// already taken.
	ErrUsernameUnavailable = errors.New("no username candidate available")
	// ErrInvalidIdentity is returned when the provider asserted no usable
	// email or subject.
	ErrInvalidIdentity = errors.New("invalid external identity")
)

// Hasher hashes the provisioned local credential.
type Hasher interface {
	Hash(secret string) (string, error)
}

// Config wires optional collaborators of a Reconciler.
type Config struct {
	Logger *slog.Logger
	Now    func() time.Time
	// NewCredential overrides the random credential source in tests.
	NewCredential func() (string, error)
	// OnProvisioned runs after a new account was inserted.
	OnProvisioned func(context.Context, account.Account)
}

// Reconciler maps external identities onto local accounts.
type Reconciler struct {
	repo          account.Repository
	hasher        Hasher
	logger        *slog.Logger
	now           func() time.Time
	newCredential func() (string, error)
	onProvisioned func(context.Context, account.Account)
}

// NewReconciler returns a Reconciler over repo.
func NewReconciler(repo account.Repository, hasher Hasher, cfg Config) (*Reconciler, error) {
	if repo == nil {
		return nil, errors.New("identity: account repository is required")
	}
	if hasher == nil {
		return nil, errors.New("identity: password hasher is required")
	}
	r := &Reconciler{
		repo:          repo,
		hasher:        hasher,
		logger:        cfg.Logger,
		now:           cfg.Now,
		newCredential: cfg.NewCredential,
		onProvisioned: cfg.OnProvisioned,
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newCredential == nil {
		r.newCredential = internal.NewLocalCredential
	}
	return r, nil
}

// Reconcile returns the account linked to ext by email, creating one when
// none exists.
func (r *Reconciler) Reconcile(ctx context.Context, ext ExternalIdentity) (account.Account, error) {
	if !ext.Provider.Valid() {
		return account.Account{}, ErrUnsupportedProvider
	}
	ext.SubjectID = strings.TrimSpace(ext.SubjectID)
	if ext.SubjectID == "" {
		return account.Account{}, fmt.Errorf("%w: missing subject", ErrInvalidIdentity)
	}
	email := account.NormalizeEmail(ext.Email)
	if err := account.ValidateEmail(email); err != nil {
		return account.Account{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	log := logging.FromContext(ctx, r.logger).With("provider", string(ext.Provider))

	existing, err := r.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		log.DebugContext(ctx, "external identity linked by email", "account_id", existing.ID)
		return existing, nil
	case !errors.Is(err, account.ErrNotFound):
		return account.Account{}, err
	}

	profile := r.profileFor(ext)

	credential, err := r.newCredential()
	if err != nil {
		return account.Account{}, fmt.Errorf("identity: generate credential: %w", err)
	}
	hash, err := r.hasher.Hash(credential)
	if err != nil {
		return account.Account{}, fmt.Errorf("identity: hash credential: %w", err)
	}
	if hash == "" {
		return account.Account{}, errors.New("identity: hasher returned empty credential")
	}

	for _, username := range usernameCandidates(ext.Provider, profile.base, ext.SubjectID) {
		if _, err := r.repo.FindByUsername(ctx, username); err == nil {
			continue
		} else if !errors.Is(err, account.ErrNotFound) {
			return account.Account{}, err
		}

		acc := account.Account{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FullName:     profile.fullName,
			Age:          profile.age,
		}
		err := r.repo.Insert(ctx, &acc)
		switch {
		case err == nil:
			log.InfoContext(ctx, "account provisioned from external identity", "account_id", acc.ID, "username", acc.Username)
			if r.onProvisioned != nil {
				r.onProvisioned(ctx, acc)
			}
			return acc, nil
		case errors.Is(err, account.ErrUsernameTaken):
			continue
		case errors.Is(err, account.ErrEmailTaken):
			// Lost a concurrent race for this email; the winner is the link.
			return r.repo.FindByEmail(ctx, email)
		default:
			return account.Account{}, err
		}
	}

	log.WarnContext(ctx, "no username candidate available", "subject", ext.SubjectID)
	return account.Account{}, ErrUsernameUnavailable
}

type derivedProfile struct {
	base     string
	fullName string
	age      *int
}

func (r *Reconciler) profileFor(ext ExternalIdentity) derivedProfile {
	fullName := clipRunes(strings.TrimSpace(ext.DisplayName), account.MaxFullNameLen)

	switch ext.Provider {
	case ProviderGoogle:
		return derivedProfile{base: ext.DisplayName, fullName: fullName}
	case ProviderYandex:
		p := derivedProfile{base: ext.Login, fullName: fullName}
		if ext.Birthdate != nil {
			if age := ageAt(*ext.Birthdate, r.now()); age >= account.MinAge && age <= account.MaxAge {
				p.age = &age
			}
		}
		return p
	}
	return derivedProfile{}
}

// usernameCandidates returns the primary slug and the subject-disambiguated
// fallback, both within the username length bounds.
func usernameCandidates(p Provider, base, subject string) []string {
	fallback := clipSlug(slug.Make(strings.ToLower(string(p))+"-"+subject), account.MaxUsernameLen)

	primary := clipSlug(slug.Make(base), account.MaxUsernameLen)
	if len(primary) < account.MinUsernameLen {
		primary = fallback
	}

	suffix := slug.Make(subject)
	if suffix == "" {
		return []string{primary}
	}
	head := clipSlug(slug.Make(base), account.MaxUsernameLen-len(suffix)-1)
	secondary := suffix
	if head != "" {
		secondary = head + "-" + suffix
	}
	secondary = clipSlug(secondary, account.MaxUsernameLen)
	if len(secondary) < account.MinUsernameLen {
		secondary = fallback
	}

	if secondary == primary {
		return []string{primary}
	}
	return []string{primary, secondary}
}

// clipSlug truncates an ASCII slug to max bytes without a trailing hyphen.
func clipSlug(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) > max {
		s = s[:max]
	}
	return strings.TrimRight(s, "-")
}

func clipRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}
