// Package crypto implements server-side credential hashing and verification.
//
// New credentials are always Argon2id. Legacy Argon2i and PBKDF2 records stay
// verifiable so accounts can migrate on their next successful login. Records
// are self-describing: algorithm and cost parameters travel with the salt and
// digest (see Record.Encode), so verification needs nothing but the stored
// value and the candidate password.
package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/and161185/oxy-accounts/internal/errs"
)

// Record is a stored credential: parameters, per-record salt and digest.
// Records are values; producing a new credential yields a new Record.
type Record struct {
	Params Params
	Salt   []byte
	Digest []byte
}

// Algorithm returns the algorithm that produced r.
func (r Record) Algorithm() Algorithm { return r.Params.Algorithm }

// Equal reports whether r and o describe the same credential.
func (r Record) Equal(o Record) bool {
	return r.Params == o.Params && bytes.Equal(r.Salt, o.Salt) && bytes.Equal(r.Digest, o.Digest)
}

// check validates r against its algorithm's contract.
func (r Record) check() error {
	if !r.Params.Algorithm.Known() {
		return fmt.Errorf("%w: %q", errs.ErrUnsupportedAlgorithm, r.Params.Algorithm)
	}
	if int(r.Params.SaltLen) != len(r.Salt) || int(r.Params.KeyLen) != len(r.Digest) {
		return fmt.Errorf("%w: declared lengths do not match salt/digest", errs.ErrMalformedRecord)
	}
	if err := r.Params.checkBounds(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrMalformedRecord, err)
	}
	return nil
}

func readRand(src io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEntropySource, err)
	}
	return b, nil
}

// Hash derives a new Record from plaintext with a fresh random salt.
func Hash(plaintext []byte, p Params) (Record, error) {
	return hashWith(rand.Reader, plaintext, p)
}

func hashWith(src io.Reader, plaintext []byte, p Params) (Record, error) {
	if len(plaintext) == 0 {
		return Record{}, fmt.Errorf("%w: empty plaintext", errs.ErrInvalidParameters)
	}
	if err := p.Validate(); err != nil {
		return Record{}, err
	}
	salt, err := readRand(src, int(p.SaltLen))
	if err != nil {
		return Record{}, err
	}
	return Record{
		Params: p,
		Salt:   salt,
		Digest: derive(plaintext, salt, p),
	}, nil
}

// Verify reports whether plaintext matches r. A wrong password is (false, nil);
// errors are reserved for records that cannot be checked at all.
func Verify(plaintext []byte, r Record) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	got := derive(plaintext, r.Salt, r.Params)
	return subtle.ConstantTimeCompare(got, r.Digest) == 1, nil
}

// NeedsRehash reports whether r should be replaced by a record produced with
// current: a different algorithm or any differing cost or length parameter.
func NeedsRehash(r Record, current Params) bool {
	return r.Params != current
}

// derive runs the KDF named by p. p must already satisfy checkBounds.
func derive(plaintext, salt []byte, p Params) []byte {
	switch p.Algorithm {
	case Argon2id:
		return argon2.IDKey(plaintext, salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	case Argon2i:
		return argon2.Key(plaintext, salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	case PBKDF2SHA256:
		return pbkdf2.Key(plaintext, salt, int(p.Iterations), int(p.KeyLen), sha256.New)
	case PBKDF2SHA512:
		return pbkdf2.Key(plaintext, salt, int(p.Iterations), int(p.KeyLen), sha512.New)
	default:
		panic("crypto: derive called with unchecked algorithm " + string(p.Algorithm))
	}
}

// Hasher is a Params set validated once at startup. It holds no mutable
// state and is safe for concurrent use.
type Hasher struct {
	params Params
	rand   io.Reader
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithRand replaces the entropy source (crypto/rand by default).
func WithRand(r io.Reader) Option {
	return func(h *Hasher) { h.rand = r }
}

// NewHasher validates p and returns a Hasher producing records with it.
func NewHasher(p Params, opts ...Option) (*Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{params: p, rand: rand.Reader}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Params returns the parameters used for new records.
func (h *Hasher) Params() Params { return h.params }

// Hash derives a new Record from plaintext.
func (h *Hasher) Hash(plaintext []byte) (Record, error) {
	return hashWith(h.rand, plaintext, h.params)
}

// Verify reports whether plaintext matches r.
func (h *Hasher) Verify(plaintext []byte, r Record) (bool, error) {
	return Verify(plaintext, r)
}

// NeedsRehash reports whether r was produced with anything other than the
// Hasher's current parameters.
func (h *Hasher) NeedsRehash(r Record) bool {
	return NeedsRehash(r, h.params)
}
