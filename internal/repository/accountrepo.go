// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/oxy-accounts/internal/model"
)

// AccountRepository persists accounts and their credential records.
type AccountRepository interface {
	// Create inserts a new account. A taken name yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account) error
	// GetByName loads an account by its unique name.
	GetByName(ctx context.Context, name string) (*model.Account, error)
	// UpdateCredential replaces the credential only if it still equals
	// oldCredential; otherwise errs.ErrVersionConflict.
	UpdateCredential(ctx context.Context, id uuid.UUID, oldCredential, newCredential string) error
}
