// Package service contains the account registration and login logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/oxy-accounts/internal/crypto"
	"github.com/and161185/oxy-accounts/internal/errs"
	"github.com/and161185/oxy-accounts/internal/model"
	"github.com/and161185/oxy-accounts/internal/repository"
	"github.com/and161185/oxy-accounts/internal/worker"
)

// AccountService defines registration and authentication operations.
type AccountService interface {
	// Register creates a new account with a freshly hashed credential.
	Register(ctx context.Context, name, password string) (accountID string, err error)
	// Login authenticates the account, upgrading its credential when the
	// stored record was produced with outdated parameters.
	Login(ctx context.Context, name, password string) (model.Account, error)
	// ChangePassword replaces the credential after verifying the old password.
	ChangePassword(ctx context.Context, name, oldPassword, newPassword string) error
}

// Input policy carried over from the web registration form.
type registration struct {
	Name     string `validate:"required,min=4,max=13,alphanum"`
	Password string `validate:"required,min=8,max=64"`
}

type credentials struct {
	Name     string `validate:"required,max=13"`
	Password string `validate:"required,max=64"`
}

type newPassword struct {
	Password string `validate:"required,min=8,max=64"`
}

// Options tune AccountServiceImpl. Zero values pick defaults.
type Options struct {
	// EntropyRetries is how many times a failed entropy read is retried.
	EntropyRetries uint64
	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration
}

const (
	defaultEntropyRetries = 3
	defaultRetryBase      = 50 * time.Millisecond
)

// AccountServiceImpl implements AccountService.
type AccountServiceImpl struct {
	accounts repository.AccountRepository
	hasher   *pkgcrypto.Hasher
	pool     *worker.Pool
	validate *validator.Validate
	log      *zap.Logger
	opts     Options

	// decoy is verified against when the account does not exist, so
	// unknown names cost the same as wrong passwords.
	decoy func() (pkgcrypto.Record, error)
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(accounts repository.AccountRepository, hasher *pkgcrypto.Hasher, pool *worker.Pool, log *zap.Logger, opts Options) *AccountServiceImpl {
	if opts.EntropyRetries == 0 {
		opts.EntropyRetries = defaultEntropyRetries
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	return &AccountServiceImpl{
		accounts: accounts,
		hasher:   hasher,
		pool:     pool,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		opts:     opts,
		decoy: sync.OnceValues(func() (pkgcrypto.Record, error) {
			return hasher.Hash([]byte("decoy-password"))
		}),
	}
}

// Register validates the input, hashes the password and stores the account.
func (s *AccountServiceImpl) Register(ctx context.Context, name, password string) (string, error) {
	if err := s.check(registration{Name: name, Password: password}); err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	rec, err := s.hash(ctx, password)
	if err != nil {
		return "", err
	}

	a := &model.Account{ID: id, Name: name, Credential: rec.Encode()}
	if err := s.accounts.Create(ctx, a); err != nil {
		return "", err
	}
	s.log.Info("account registered", zap.String("account_id", id.String()), zap.String("name", name))
	return id.String(), nil
}

// Login checks the password and, on success, transparently upgrades legacy
// or outdated credentials. Upgrade failures never fail the login.
func (s *AccountServiceImpl) Login(ctx context.Context, name, password string) (model.Account, error) {
	if err := s.check(credentials{Name: name, Password: password}); err != nil {
		return model.Account{}, err
	}
	a, rec, err := s.authenticate(ctx, name, password)
	if err != nil {
		return model.Account{}, err
	}

	if s.hasher.NeedsRehash(rec) {
		s.upgrade(ctx, a, rec, password)
	}
	return *a, nil
}

// ChangePassword verifies oldPassword and stores a brand-new record for
// newPassword. A concurrent credential change yields errs.ErrVersionConflict.
func (s *AccountServiceImpl) ChangePassword(ctx context.Context, name, oldPassword, newPass string) error {
	if err := s.check(credentials{Name: name, Password: oldPassword}); err != nil {
		return err
	}
	if err := s.check(newPassword{Password: newPass}); err != nil {
		return err
	}
	a, _, err := s.authenticate(ctx, name, oldPassword)
	if err != nil {
		return err
	}
	rec, err := s.hash(ctx, newPass)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdateCredential(ctx, a.ID, a.Credential, rec.Encode()); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("account_id", a.ID.String()))
	return nil
}

// authenticate loads the account and verifies password against its record.
func (s *AccountServiceImpl) authenticate(ctx context.Context, name, password string) (*model.Account, pkgcrypto.Record, error) {
	a, err := s.accounts.GetByName(ctx, name)
	if errors.Is(err, errs.ErrNotFound) {
		s.burnDecoy(ctx, password)
		return nil, pkgcrypto.Record{}, errs.ErrUnauthorized
	}
	if err != nil {
		return nil, pkgcrypto.Record{}, err
	}

	rec, err := pkgcrypto.Decode(a.Credential)
	switch {
	case errors.Is(err, errs.ErrUnsupportedAlgorithm):
		// No KDF can run on this record; spend the same work as a verify.
		s.burnDecoy(ctx, password)
		s.log.Warn("credential algorithm unsupported, password reset required",
			zap.String("account_id", a.ID.String()), zap.Error(err))
		return nil, pkgcrypto.Record{}, err
	case err != nil:
		s.log.Error("stored credential is malformed",
			zap.String("account_id", a.ID.String()), zap.Error(err))
		return nil, pkgcrypto.Record{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}

	ok, err := s.verify(ctx, password, rec)
	if err != nil {
		if errors.Is(err, errs.ErrMalformedRecord) {
			s.log.Error("stored credential is malformed",
				zap.String("account_id", a.ID.String()), zap.Error(err))
			return nil, pkgcrypto.Record{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
		}
		return nil, pkgcrypto.Record{}, err
	}
	if !ok {
		return nil, pkgcrypto.Record{}, errs.ErrUnauthorized
	}
	return a, rec, nil
}

// upgrade replaces an outdated credential. Best effort.
func (s *AccountServiceImpl) upgrade(ctx context.Context, a *model.Account, old pkgcrypto.Record, password string) {
	log := s.log.With(zap.String("account_id", a.ID.String()),
		zap.String("from", string(old.Algorithm())))

	rec, err := s.hash(ctx, password)
	if err != nil {
		log.Warn("credential upgrade: hash failed", zap.Error(err))
		return
	}
	encoded := rec.Encode()
	err = s.accounts.UpdateCredential(ctx, a.ID, a.Credential, encoded)
	switch {
	case errors.Is(err, errs.ErrVersionConflict):
		log.Info("credential upgrade skipped, credential changed concurrently")
	case err != nil:
		log.Warn("credential upgrade: store failed", zap.Error(err))
	default:
		a.Credential = encoded
		log.Info("credential upgraded", zap.String("to", string(rec.Algorithm())))
	}
}

// hash produces a new record on the worker pool, retrying entropy failures
// with exponential backoff.
func (s *AccountServiceImpl) hash(ctx context.Context, password string) (pkgcrypto.Record, error) {
	var rec pkgcrypto.Record
	backoff := retry.WithMaxRetries(s.opts.EntropyRetries, retry.NewExponential(s.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := worker.Do(ctx, s.pool, func() (pkgcrypto.Record, error) {
			return s.hasher.Hash([]byte(password))
		})
		if errors.Is(err, errs.ErrEntropySource) {
			s.log.Warn("entropy source failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

func (s *AccountServiceImpl) verify(ctx context.Context, password string, rec pkgcrypto.Record) (bool, error) {
	return worker.Do(ctx, s.pool, func() (bool, error) {
		return s.hasher.Verify([]byte(password), rec)
	})
}

func (s *AccountServiceImpl) burnDecoy(ctx context.Context, password string) {
	rec, err := s.decoy()
	if err != nil {
		return
	}
	_, _ = s.verify(ctx, password, rec)
}

// check runs struct validation and maps failures to errs.ErrInvalidInput.
func (s *AccountServiceImpl) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", errs.ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "alphanum":
		return field + " must contain only letters and digits"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
