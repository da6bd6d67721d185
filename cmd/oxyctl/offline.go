package main

import (
	"github.com/spf13/cobra"

	pkgcrypto "github.com/and161185/oxy-accounts/internal/crypto"
)

// recordView is the JSON shape printed by inspect and verify.
type recordView struct {
	Algorithm   pkgcrypto.Algorithm `json:"algorithm"`
	Legacy      bool                `json:"legacy"`
	Memory      uint32              `json:"memory_kib,omitempty"`
	Time        uint32              `json:"time,omitempty"`
	Parallelism uint8               `json:"parallelism,omitempty"`
	Iterations  uint32              `json:"iterations,omitempty"`
	SaltLen     uint32              `json:"salt_len"`
	KeyLen      uint32              `json:"key_len"`
	NeedsRehash bool                `json:"needs_rehash"`
	Match       *bool               `json:"match,omitempty"`
}

func viewOf(r pkgcrypto.Record, current pkgcrypto.Params) recordView {
	p := r.Params
	return recordView{
		Algorithm:   p.Algorithm,
		Legacy:      p.Algorithm.Legacy(),
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		Iterations:  p.Iterations,
		SaltLen:     p.SaltLen,
		KeyLen:      p.KeyLen,
		NeedsRehash: pkgcrypto.NeedsRehash(r, current),
	}
}

// paramFlags binds Argon2id cost flags, defaulting to the server defaults.
func paramFlags(cmd *cobra.Command) *pkgcrypto.Params {
	p := pkgcrypto.DefaultParams()
	f := cmd.Flags()
	f.Uint32Var(&p.Memory, "memory", p.Memory, "Argon2id memory in KiB")
	f.Uint32Var(&p.Time, "time", p.Time, "Argon2id passes")
	f.Uint8Var(&p.Parallelism, "parallelism", p.Parallelism, "Argon2id lanes")
	f.Uint32Var(&p.SaltLen, "salt-len", p.SaltLen, "salt length in bytes")
	f.Uint32Var(&p.KeyLen, "key-len", p.KeyLen, "digest length in bytes")
	return &p
}

func newHashCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from stdin and print the PHC record",
		Args:  cobra.NoArgs,
	}
	params := paramFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		pw, err := a.readSecret("password")
		if err != nil {
			return err
		}
		rec, err := pkgcrypto.Hash([]byte(pw), *params)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write([]byte(rec.Encode() + "\n"))
		return err
	}
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify RECORD",
		Short: "Check a password read from stdin against a PHC record",
		Long:  "Prints the record summary with a match field. Exits 1 on mismatch.",
		Args:  cobra.ExactArgs(1),
	}
	params := paramFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		rec, err := pkgcrypto.Decode(args[0])
		if err != nil {
			return err
		}
		pw, err := a.readSecret("password")
		if err != nil {
			return err
		}
		ok, err := pkgcrypto.Verify([]byte(pw), rec)
		if err != nil {
			return err
		}
		v := viewOf(rec, *params)
		v.Match = &ok
		if err := printJSON(cmd.OutOrStdout(), v); err != nil {
			return err
		}
		if !ok {
			return exitError{code: 1}
		}
		return nil
	}
	return cmd
}

func newInspectCmd(_ *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect RECORD",
		Short: "Decode a PHC record and print its parameters",
		Args:  cobra.ExactArgs(1),
	}
	params := paramFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		rec, err := pkgcrypto.Decode(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), viewOf(rec, *params))
	}
	return cmd
}
