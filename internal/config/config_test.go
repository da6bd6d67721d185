package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgcrypto "github.com/and161185/oxy-accounts/internal/crypto"
	"github.com/and161185/oxy-accounts/internal/errs"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "oxy.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsPlusEnv(t *testing.T) {
	t.Setenv("OXY_POSTGRES_DSN", "postgres://oxy@localhost/oxy")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres://oxy@localhost/oxy", cfg.Postgres.DSN)
	require.Equal(t, "pgx", cfg.Postgres.Driver)
	require.Equal(t, ":8443", cfg.GRPC.Addr)
	require.Equal(t, pkgcrypto.DefaultParams(), cfg.Hash.Params())
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	path := writeFile(t, `
dev: true
log:
  level: debug
grpc:
  addr: 127.0.0.1:9443
  callTimeout: 5s
postgres:
  dsn: postgres://file@db/oxy
  maxConns: 8
  driver: gorm
hash:
  memory: 131072
  time: 4
  parallelism: 4
  saltLen: 16
  keyLen: 32
  workers: 2
`)
	t.Setenv("OXY_POSTGRES_MAXCONNS", "16")
	t.Setenv("OXY_HASH_SALTLEN", "32")
	t.Setenv("OXY_GRPC_CALLTIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Dev)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "127.0.0.1:9443", cfg.GRPC.Addr)
	require.Equal(t, 3*time.Second, cfg.GRPC.CallTimeout)
	require.Equal(t, "postgres://file@db/oxy", cfg.Postgres.DSN)
	require.Equal(t, int32(16), cfg.Postgres.MaxConns)
	require.Equal(t, "gorm", cfg.Postgres.Driver)
	require.Equal(t, 2, cfg.Hash.Workers)

	p := cfg.Hash.Params()
	require.Equal(t, uint32(131072), p.Memory)
	require.Equal(t, uint32(4), p.Time)
	require.Equal(t, uint8(4), p.Parallelism)
	require.Equal(t, uint32(32), p.SaltLen)
	// Untouched keys keep their defaults.
	require.True(t, cfg.Postgres.Migrate)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_RejectsBadHashParams(t *testing.T) {
	t.Setenv("OXY_POSTGRES_DSN", "postgres://oxy@localhost/oxy")
	t.Setenv("OXY_HASH_TIME", "0")

	_, err := Load("")
	require.ErrorIs(t, err, errs.ErrInvalidParameters)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	// No DSN anywhere.
	_, err = Load("")
	require.Error(t, err)

	t.Setenv("OXY_POSTGRES_DSN", "postgres://oxy@localhost/oxy")
	t.Setenv("OXY_POSTGRES_DRIVER", "sqlite")
	_, err = Load("")
	require.Error(t, err)

	t.Setenv("OXY_POSTGRES_DRIVER", "pgx")
	t.Setenv("OXY_LOG_LEVEL", "verbose")
	_, err = Load("")
	require.Error(t, err)
}

func TestCanonicalEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{"maxConns": 4, "dsn": ""},
		"grpc":     map[string]any{"callTimeout": "1s"},
	}
	tests := []struct {
		envKey string
		want   string
	}{
		{"POSTGRES_MAXCONNS", "postgres.maxConns"},
		{"GRPC_CALLTIMEOUT", "grpc.callTimeout"},
		{"POSTGRES_DSN", "postgres.dsn"},
		{"HASH_SALTLEN", "hash.saltlen"},
		{"LOG__LEVEL", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}

func TestLoad_TLSPairRequired(t *testing.T) {
	t.Setenv("OXY_POSTGRES_DSN", "postgres://oxy@localhost/oxy")
	t.Setenv("OXY_GRPC_TLSCERT", "cert.pem")

	_, err := Load("")
	require.Error(t, err)

	t.Setenv("OXY_GRPC_TLSKEY", "key.pem")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "cert.pem", cfg.GRPC.TLSCert)
	require.Equal(t, "key.pem", cfg.GRPC.TLSKey)
}
