package accountdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/pomoAuth/account"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config describes the database connection.
type Config struct {
	Driver Driver
	// DSN is passed to the driver as-is.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresDSN formats a postgres URL from its parts.
func PostgresDSN(user, password, host, port, name string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
}

// Open connects, applies pool limits and migrates the accounts table.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("accountdb: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("accountdb: connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accountdb: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the accounts table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&accountRecord{}); err != nil {
		return fmt.Errorf("accountdb: migrate: %w", err)
	}
	return nil
}

type accountRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"size:100;uniqueIndex;not null"`
	Email     string `gorm:"size:255;uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	FullName  string `gorm:"size:100"`
	Age       *int
	IsAdmin   bool `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (accountRecord) TableName() string { return "users" }

func toRecord(a account.Account) accountRecord {
	return accountRecord{
		ID:        a.ID,
		Username:  a.Username,
		Email:     account.NormalizeEmail(a.Email),
		Password:  a.PasswordHash,
		FullName:  a.FullName,
		Age:       a.Age,
		IsAdmin:   a.IsAdmin,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (r accountRecord) toAccount() account.Account {
	return account.Account{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.Password,
		FullName:     r.FullName,
		Age:          r.Age,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Repository is the gorm implementation of account.Repository.
type Repository struct {
	db *gorm.DB
}

// New wraps an open, migrated database.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id int64) (account.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (account.Account, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (account.Account, error) {
	return r.first(ctx, "email = ?", account.NormalizeEmail(email))
}

// Insert stores acc and copies back the generated id and timestamps.
func (r *Repository) Insert(ctx context.Context, acc *account.Account) error {
	rec := toRecord(*acc)
	rec.ID = 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, rec); err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return classify(err)
	}
	*acc = rec.toAccount()
	return nil
}

// Update overwrites every mutable column of acc.
func (r *Repository) Update(ctx context.Context, acc *account.Account) error {
	rec := toRecord(*acc)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current accountRecord
		if err := tx.First(&current, "id = ?", rec.ID).Error; err != nil {
			return err
		}
		if err := checkUnique(tx, rec); err != nil {
			return err
		}
		rec.CreatedAt = current.CreatedAt
		return tx.Model(&current).Select("*").Omit("id", "created_at").Updates(&rec).Error
	})
	if err != nil {
		return classify(err)
	}
	updated, err := r.FindByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	*acc = updated
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&accountRecord{}, "id = ?", id)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *Repository) first(ctx context.Context, query string, arg any) (account.Account, error) {
	var rec accountRecord
	if err := r.db.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		return account.Account{}, classify(err)
	}
	return rec.toAccount(), nil
}

// checkUnique reports the first conflicting column for rec, ignoring the
// row rec itself.
func checkUnique(tx *gorm.DB, rec accountRecord) error {
	var n int64
	if err := tx.Model(&accountRecord{}).Where("username = ? AND id <> ?", rec.Username, rec.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return account.ErrUsernameTaken
	}
	if err := tx.Model(&accountRecord{}).Where("email = ? AND id <> ?", rec.Email, rec.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return account.ErrEmailTaken
	}
	return nil
}

// classify maps driver errors onto account sentinels. Unique violations
// that slip past checkUnique under concurrency are matched by message.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return account.ErrNotFound
	case errors.Is(err, account.ErrUsernameTaken), errors.Is(err, account.ErrEmailTaken), errors.Is(err, account.ErrNotFound):
		return err
	}

	msg := strings.ToLower(err.Error())
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key") {
		if strings.Contains(msg, "email") {
			return account.ErrEmailTaken
		}
		return account.ErrUsernameTaken
	}
	return fmt.Errorf("accountdb: %w", err)
}
