// Package config loads server configuration from defaults, an optional YAML
// file and OXY_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	pkgcrypto "github.com/and161185/oxy-accounts/internal/crypto"
)

// EnvPrefix marks environment overrides. Nested keys are joined with "_"
// and matched case-insensitively: OXY_POSTGRES_MAXCONNS -> postgres.maxConns.
const EnvPrefix = "OXY_"

// Config is the full server configuration.
type Config struct {
	Dev      bool     `yaml:"dev"`
	Log      Log      `yaml:"log"`
	GRPC     GRPC     `yaml:"grpc"`
	HTTP     HTTP     `yaml:"http"`
	Postgres Postgres `yaml:"postgres"`
	Hash     Hash     `yaml:"hash"`
}

// Log configures the zap logger.
type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// GRPC configures the gRPC listener. TLS is enabled when both TLSCert and
// TLSKey are set.
type GRPC struct {
	Addr        string        `yaml:"addr" validate:"required,hostname_port"`
	CallTimeout time.Duration `yaml:"callTimeout" validate:"gte=0"`
	TLSCert     string        `yaml:"tlsCert" validate:"required_with=TLSKey"`
	TLSKey      string        `yaml:"tlsKey" validate:"required_with=TLSCert"`
}

// HTTP configures the JSON API listener. An empty Addr disables it.
type HTTP struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Postgres configures the account store.
type Postgres struct {
	DSN      string `yaml:"dsn" validate:"required"`
	MaxConns int32  `yaml:"maxConns" validate:"gte=0"`
	// Driver selects the repository implementation: pgx or gorm.
	Driver  string `yaml:"driver" validate:"oneof=pgx gorm"`
	Migrate bool   `yaml:"migrate"`
}

// Hash configures credential hashing for new records.
type Hash struct {
	Memory         uint32 `yaml:"memory"`
	Time           uint32 `yaml:"time"`
	Parallelism    uint8  `yaml:"parallelism"`
	SaltLen        uint32 `yaml:"saltLen"`
	KeyLen         uint32 `yaml:"keyLen"`
	Workers        int    `yaml:"workers" validate:"gte=0"`
	EntropyRetries uint64 `yaml:"entropyRetries"`
}

// Params converts h into hasher parameters.
func (h Hash) Params() pkgcrypto.Params {
	return pkgcrypto.Params{
		Algorithm:   pkgcrypto.Argon2id,
		Memory:      h.Memory,
		Time:        h.Time,
		Parallelism: h.Parallelism,
		SaltLen:     h.SaltLen,
		KeyLen:      h.KeyLen,
	}
}

// Default returns the built-in configuration.
func Default() Config {
	p := pkgcrypto.DefaultParams()
	return Config{
		Log:  Log{Level: "info"},
		GRPC: GRPC{Addr: ":8443", CallTimeout: 10 * time.Second},
		HTTP: HTTP{Addr: ":8080"},
		Postgres: Postgres{
			Driver:  "pgx",
			Migrate: true,
		},
		Hash: Hash{
			Memory:         p.Memory,
			Time:           p.Time,
			Parallelism:    p.Parallelism,
			SaltLen:        p.SaltLen,
			KeyLen:         p.KeyLen,
			EntropyRetries: 3,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file named
// explicitly is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, v string) (string, any) {
			return canonicalEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), v
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "yaml",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: strings.EqualFold,
		},
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the hashing parameters.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Hash.Params().Validate(); err != nil {
		return fmt.Errorf("invalid config: hash: %w", err)
	}
	return nil
}

// canonicalEnvKey turns POSTGRES_MAXCONNS into postgres.maxConns, reusing the
// spelling of keys already loaded from the file.
func canonicalEnvKey(raw string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(raw), "_")
	out := make([]string, 0, len(segments))
	current := existing
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		matched, next := seg, map[string]any(nil)
		for key, v := range current {
			if normalize(key) == normalize(seg) {
				matched = key
				next, _ = v.(map[string]any)
				break
			}
		}
		out = append(out, matched)
		current = next
	}
	return strings.Join(out, ".")
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
