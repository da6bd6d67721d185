package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/oxy-accounts/internal/errs"
	"github.com/and161185/oxy-accounts/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row. created_at/updated_at are filled back in.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, name, credential)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, a.ID, a.Name, a.Credential).Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: account %q", errs.ErrAlreadyExists, a.Name)
	}
	return err
}

// GetByName selects an account by name.
func (r *AccountRepo) GetByName(ctx context.Context, name string) (*model.Account, error) {
	const q = `
SELECT id, name, credential, created_at, updated_at
FROM accounts WHERE name=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, name))
}

// UpdateCredential swaps the credential only if the stored one is still old.
func (r *AccountRepo) UpdateCredential(ctx context.Context, id uuid.UUID, old, updated string) error {
	const q = `
UPDATE accounts
SET credential = $3, updated_at = now()
WHERE id = $1 AND credential = $2`
	tag, err := r.db.Pool.Exec(ctx, q, id, old, updated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrVersionConflict
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Credential, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
