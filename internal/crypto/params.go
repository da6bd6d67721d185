package crypto

import (
	"fmt"

	"github.com/and161185/oxy-accounts/internal/errs"
)

// Algorithm identifies the key derivation function behind a Record.
type Algorithm string

const (
	// Argon2id is the only algorithm used for new records.
	Argon2id Algorithm = "argon2id"
	// Argon2i records come from the older account-creation tool. Verify only.
	Argon2i Algorithm = "argon2i"
	// PBKDF2SHA256 records come from the older login server. Verify only.
	PBKDF2SHA256 Algorithm = "pbkdf2-sha256"
	// PBKDF2SHA512 is the SHA-512 flavour of the same legacy scheme. Verify only.
	PBKDF2SHA512 Algorithm = "pbkdf2-sha512"
)

// Known reports whether a is an algorithm this package can verify.
func (a Algorithm) Known() bool {
	switch a {
	case Argon2id, Argon2i, PBKDF2SHA256, PBKDF2SHA512:
		return true
	}
	return false
}

// Legacy reports whether a is accepted for verification only.
func (a Algorithm) Legacy() bool { return a.Known() && a != Argon2id }

func (a Algorithm) isArgon2() bool { return a == Argon2id || a == Argon2i }

// Argon2id defaults (tuned for server-side hashing).
const (
	DefaultMemory      uint32 = 64 * 1024 // 64 MiB
	DefaultTime        uint32 = 3
	DefaultParallelism uint8  = 2
	DefaultSaltLen     uint32 = 16
	DefaultKeyLen      uint32 = 32
)

// Length and cost contract per algorithm family. Decode rejects records
// outside these ranges so a tampered row cannot request unbounded work.
const (
	maxArgonMemory   uint32 = 1 << 20 // KiB, 1 GiB
	maxArgonTime     uint32 = 64
	maxParallelism   uint8  = 64
	minArgonSalt            = 8
	minPBKDF2Salt           = 4
	maxSalt                 = 64
	minKey                  = 16
	maxKey                  = 64
	maxPBKDF2Rounds  uint32 = 10_000_000
	minNewRecordSalt uint32 = 16
)

// Params are the cost parameters of a credential. Argon2 records use
// Memory/Time/Parallelism, PBKDF2 records use Iterations. SaltLen and KeyLen
// always equal the lengths of the record's salt and digest.
type Params struct {
	Algorithm   Algorithm
	Memory      uint32 // KiB
	Time        uint32 // passes over memory
	Parallelism uint8
	Iterations  uint32
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultParams returns the parameter set used for new records.
func DefaultParams() Params {
	return Params{
		Algorithm:   Argon2id,
		Memory:      DefaultMemory,
		Time:        DefaultTime,
		Parallelism: DefaultParallelism,
		SaltLen:     DefaultSaltLen,
		KeyLen:      DefaultKeyLen,
	}
}

// Validate checks p is usable for producing new records.
func (p Params) Validate() error {
	if p.Algorithm != Argon2id {
		if p.Algorithm.Legacy() {
			return fmt.Errorf("%w: %s is accepted for verification only", errs.ErrInvalidParameters, p.Algorithm)
		}
		return fmt.Errorf("%w: unknown algorithm %q", errs.ErrInvalidParameters, p.Algorithm)
	}
	if p.SaltLen < minNewRecordSalt {
		return fmt.Errorf("%w: salt length %d below %d", errs.ErrInvalidParameters, p.SaltLen, minNewRecordSalt)
	}
	if err := p.checkBounds(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidParameters, err)
	}
	return nil
}

// checkBounds verifies p against its algorithm's contract. The error is
// unwrapped; callers attach the sentinel that fits their context.
func (p Params) checkBounds() error {
	switch {
	case p.Algorithm.isArgon2():
		if p.Iterations != 0 {
			return fmt.Errorf("%s does not take an iteration count", p.Algorithm)
		}
		if p.Time < 1 || p.Time > maxArgonTime {
			return fmt.Errorf("time %d outside 1..%d", p.Time, maxArgonTime)
		}
		if p.Parallelism < 1 || p.Parallelism > maxParallelism {
			return fmt.Errorf("parallelism %d outside 1..%d", p.Parallelism, maxParallelism)
		}
		if p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxArgonMemory {
			return fmt.Errorf("memory %d KiB outside %d..%d", p.Memory, 8*uint32(p.Parallelism), maxArgonMemory)
		}
		if err := checkLen("salt", p.SaltLen, minArgonSalt, maxSalt); err != nil {
			return err
		}
		return checkLen("key", p.KeyLen, minKey, maxKey)
	case p.Algorithm == PBKDF2SHA256 || p.Algorithm == PBKDF2SHA512:
		if p.Memory != 0 || p.Time != 0 || p.Parallelism != 0 {
			return fmt.Errorf("%s takes only an iteration count", p.Algorithm)
		}
		if p.Iterations < 1 || p.Iterations > maxPBKDF2Rounds {
			return fmt.Errorf("iterations %d outside 1..%d", p.Iterations, maxPBKDF2Rounds)
		}
		if err := checkLen("salt", p.SaltLen, minPBKDF2Salt, maxSalt); err != nil {
			return err
		}
		return checkLen("key", p.KeyLen, minKey, maxKey)
	default:
		return fmt.Errorf("unknown algorithm %q", p.Algorithm)
	}
}

func checkLen(what string, n uint32, lo, hi int) error {
	if int64(n) < int64(lo) || int64(n) > int64(hi) {
		return fmt.Errorf("%s length %d outside %d..%d", what, n, lo, hi)
	}
	return nil
}
