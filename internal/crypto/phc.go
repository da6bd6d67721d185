package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/and161185/oxy-accounts/internal/errs"
)

// Encode serialises r in PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<digest>
//	$pbkdf2-sha256$i=4096,l=32$<salt>$<digest>
//
// Salt and digest use unpadded standard base64.
func (r Record) Encode() string {
	p := r.Params
	salt := base64.RawStdEncoding.EncodeToString(r.Salt)
	digest := base64.RawStdEncoding.EncodeToString(r.Digest)
	if p.Algorithm.isArgon2() {
		return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
			p.Algorithm, argon2.Version, p.Memory, p.Time, p.Parallelism, salt, digest)
	}
	return fmt.Sprintf("$%s$i=%d,l=%d$%s$%s", p.Algorithm, p.Iterations, len(r.Digest), salt, digest)
}

// Decode parses a PHC string produced by Encode or by the legacy producers.
// Unknown algorithms and Argon2 versions fail with ErrUnsupportedAlgorithm;
// anything else that does not parse or violates the length contract fails
// with ErrMalformedRecord.
func Decode(encoded string) (Record, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) < 2 || parts[0] != "" || parts[1] == "" {
		return Record{}, fmt.Errorf("%w: not a PHC string", errs.ErrMalformedRecord)
	}

	alg := Algorithm(parts[1])
	var (
		r   Record
		err error
	)
	switch {
	case alg.isArgon2():
		r, err = decodeArgon2(alg, parts)
	case alg == PBKDF2SHA256 || alg == PBKDF2SHA512:
		r, err = decodePBKDF2(alg, parts)
	default:
		return Record{}, fmt.Errorf("%w: %q", errs.ErrUnsupportedAlgorithm, parts[1])
	}
	if err != nil {
		return Record{}, err
	}
	if err := r.check(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// $argon2id$v=19$m=..,t=..,p=..$salt$digest
func decodeArgon2(alg Algorithm, parts []string) (Record, error) {
	if len(parts) != 6 {
		return Record{}, malformed("expected 5 segments, got %d", len(parts)-1)
	}
	ver, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return Record{}, malformed("missing argon2 version")
	}
	v, err := strconv.ParseUint(ver, 10, 32)
	if err != nil || (len(ver) > 1 && ver[0] == '0') {
		return Record{}, malformed("bad argon2 version %q", ver)
	}
	if v != argon2.Version {
		return Record{}, fmt.Errorf("%w: argon2 version %d", errs.ErrUnsupportedAlgorithm, v)
	}

	kv, err := parseParams(parts[3], "m", "t", "p")
	if err != nil {
		return Record{}, err
	}
	if _, ok := kv["l"]; ok {
		return Record{}, malformed("unexpected parameter %q", "l")
	}
	if kv["p"] > 255 || kv["m"] > 1<<32-1 || kv["t"] > 1<<32-1 {
		return Record{}, malformed("argon2 parameter out of range in %q", parts[3])
	}

	salt, digest, err := decodeSaltDigest(parts[4], parts[5])
	if err != nil {
		return Record{}, err
	}
	return Record{
		Params: Params{
			Algorithm:   alg,
			Memory:      uint32(kv["m"]),
			Time:        uint32(kv["t"]),
			Parallelism: uint8(kv["p"]),
			SaltLen:     uint32(len(salt)),
			KeyLen:      uint32(len(digest)),
		},
		Salt:   salt,
		Digest: digest,
	}, nil
}

// $pbkdf2-sha256$i=..[,l=..]$salt$digest
func decodePBKDF2(alg Algorithm, parts []string) (Record, error) {
	if len(parts) != 5 {
		return Record{}, malformed("expected 4 segments, got %d", len(parts)-1)
	}
	kv, err := parseParams(parts[2], "i")
	if err != nil {
		return Record{}, err
	}
	if kv["i"] > 1<<32-1 {
		return Record{}, malformed("iteration count out of range")
	}

	salt, digest, err := decodeSaltDigest(parts[3], parts[4])
	if err != nil {
		return Record{}, err
	}
	if l, ok := kv["l"]; ok && l != uint64(len(digest)) {
		return Record{}, malformed("declared output length %d, digest has %d", l, len(digest))
	}
	return Record{
		Params: Params{
			Algorithm:  alg,
			Iterations: uint32(kv["i"]),
			SaltLen:    uint32(len(salt)),
			KeyLen:     uint32(len(digest)),
		},
		Salt:   salt,
		Digest: digest,
	}, nil
}

// parseParams splits "m=65536,t=3,p=2" into a map, requiring every key in
// required. Only required keys and "l" are accepted; duplicates are rejected.
func parseParams(s string, required ...string) (map[string]uint64, error) {
	allowed := map[string]bool{"l": true}
	for _, k := range required {
		allowed[k] = true
	}
	out := make(map[string]uint64, len(required))
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, malformed("bad parameter %q", pair)
		}
		if !allowed[k] {
			return nil, malformed("unexpected parameter %q", k)
		}
		if _, dup := out[k]; dup {
			return nil, malformed("duplicate parameter %q", k)
		}
		if len(v) > 1 && v[0] == '0' {
			return nil, malformed("leading zero in parameter %q", pair)
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, malformed("non-numeric parameter %q", pair)
		}
		out[k] = n
	}
	for _, k := range required {
		if _, ok := out[k]; !ok {
			return nil, malformed("missing parameter %q", k)
		}
	}
	return out, nil
}

func decodeSaltDigest(saltB64, digestB64 string) ([]byte, []byte, error) {
	salt, err := decodeB64(saltB64)
	if err != nil {
		return nil, nil, malformed("salt: %v", err)
	}
	digest, err := decodeB64(digestB64)
	if err != nil {
		return nil, nil, malformed("digest: %v", err)
	}
	return salt, digest, nil
}

// decodeB64 accepts canonical unpadded (PHC) or correctly padded standard
// base64. Line breaks, which the decoder would otherwise skip, are rejected.
func decodeB64(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, errors.New("line break in base64")
	}
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.Strict().DecodeString(s)
	}
	return base64.RawStdEncoding.Strict().DecodeString(s)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrMalformedRecord, fmt.Sprintf(format, args...))
}
