// Package orm implements the account store on GORM.
package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/and161185/oxy-accounts/internal/errs"
	"github.com/and161185/oxy-accounts/internal/model"
)

// Open connects to Postgres through GORM with zap-backed query logging.
// maxConns <= 0 keeps the database/sql default.
func Open(dsn string, maxConns int32, log *zap.Logger, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(log, debug))
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	if err := limitConns(db, maxConns); err != nil {
		return nil, err
	}
	return db, nil
}

func limitConns(db *gorm.DB, maxConns int32) error {
	if maxConns <= 0 {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("gorm pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(int(maxConns))
	return nil
}

func gormConfig(log *zap.Logger, debug bool) *gorm.Config {
	return &gorm.Config{
		Logger:         newZapLogger(log, debug),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// AccountRepo implements AccountRepository using GORM.
type AccountRepo struct{ db *gorm.DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *gorm.DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	row := fromDomain(a)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return translate(err, a.Name)
	}
	a.CreatedAt, a.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

// GetByName selects an account by name.
func (r *AccountRepo) GetByName(ctx context.Context, name string) (*model.Account, error) {
	var row accountRow
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, translate(err, name)
	}
	return row.toDomain(), nil
}

// UpdateCredential swaps the credential only if the stored one is still old.
func (r *AccountRepo) UpdateCredential(ctx context.Context, id uuid.UUID, old, updated string) error {
	res := casCredential(r.db.WithContext(ctx), id, old, updated)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrVersionConflict
	}
	return nil
}

// Ping checks connectivity.
func (r *AccountRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (r *AccountRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func casCredential(db *gorm.DB, id uuid.UUID, old, updated string) *gorm.DB {
	return db.Model(&accountRow{}).
		Where("id = ? AND credential = ?", id, old).
		Updates(map[string]any{
			"credential": updated,
			"updated_at": gorm.Expr("now()"),
		})
}

// translate maps GORM's translated errors onto the errs sentinels.
func translate(err error, key string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: account %q", errs.ErrAlreadyExists, key)
	default:
		return err
	}
}
