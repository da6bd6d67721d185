package orm

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/oxy-accounts/internal/model"
)

// accountRow maps the accounts table created by the goose migrations.
type accountRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"size:13;not null;uniqueIndex:accounts_name_key"`
	Credential string    `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (accountRow) TableName() string { return "accounts" }

func fromDomain(a *model.Account) *accountRow {
	return &accountRow{
		ID:         a.ID,
		Name:       a.Name,
		Credential: a.Credential,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func (r *accountRow) toDomain() *model.Account {
	return &model.Account{
		ID:         r.ID,
		Name:       r.Name,
		Credential: r.Credential,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
