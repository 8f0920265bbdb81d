// Package account defines the local account record and the persistence
// capability the rest of pomoAuth consumes.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 100
	MaxFullNameLen = 100
	MinAge         = 18
	MaxAge         = 99
)

var (
	ErrNotFound      = errors.New("account not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
	ErrInvalid       = errors.New("invalid account data")
)

// Account is a local user. PasswordHash is never empty, including for
// accounts provisioned through an OAuth provider.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Age          *int
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SubjectID is the string form of ID used as the token subject.
func (a Account) SubjectID() string {
	return strconv.FormatInt(a.ID, 10)
}

// ParseSubject converts a token subject back into an account id.
func ParseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q", ErrNotFound, sub)
	}
	return id, nil
}

// Repository is implemented by the persistence layer. Lookups return
// ErrNotFound when nothing matches; Insert and Update return ErrUsernameTaken
// or ErrEmailTaken on uniqueness conflicts.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	Insert(ctx context.Context, acc *Account) error
	Update(ctx context.Context, acc *Account) error
	Delete(ctx context.Context, id int64) error
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUsername trims surrounding whitespace. Usernames are case-sensitive.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// ValidateUsername enforces the 3..100 character bound.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalid, MinUsernameLen, MaxUsernameLen)
	}
	return nil
}

// ValidateEmail accepts a bare RFC 5322 address with a domain part.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("%w: invalid email address", ErrInvalid)
	}
	return nil
}

// ValidateProfile checks the optional display attributes.
func ValidateProfile(fullName string, age *int) error {
	if utf8.RuneCountInString(fullName) > MaxFullNameLen {
		return fmt.Errorf("%w: full name must be at most %d characters", ErrInvalid, MaxFullNameLen)
	}
	if age != nil && (*age < MinAge || *age > MaxAge) {
		return fmt.Errorf("%w: age must be between %d and %d", ErrInvalid, MinAge, MaxAge)
	}
	return nil
}

// Validate checks every field of acc that has a format constraint.
func Validate(acc Account) error {
	if err := ValidateUsername(acc.Username); err != nil {
		return err
	}
	if err := ValidateEmail(acc.Email); err != nil {
		return err
	}
	if acc.PasswordHash == "" {
		return fmt.Errorf("%w: credential must be set", ErrInvalid)
	}
	return ValidateProfile(acc.FullName, acc.Age)
}
