package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/oxy-accounts/internal/config"
	pkgcrypto "github.com/and161185/oxy-accounts/internal/crypto"
	"github.com/and161185/oxy-accounts/internal/logging"
	"github.com/and161185/oxy-accounts/internal/service"
	"github.com/and161185/oxy-accounts/internal/store"
	"github.com/and161185/oxy-accounts/internal/worker"
)

// newCreateAccountCmd registers an account straight against the database,
// for bootstrapping before the server is reachable.
func newCreateAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-account NAME",
		Short: "Create an account directly in the database (password on stdin)",
		Long:  "Uses the server configuration (--config and OXY_* variables) to reach the database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Dev)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pw, err := a.readSecret("password")
			if err != nil {
				return err
			}
			hasher, err := pkgcrypto.NewHasher(cfg.Hash.Params())
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			st, err := store.Open(ctx, cfg.Postgres, log, cfg.Dev)
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(); err != nil {
					log.Warn("close store", zap.Error(err))
				}
			}()

			svc := service.NewAccountService(st.Accounts, hasher, worker.NewPool(1), log, service.Options{
				EntropyRetries: cfg.Hash.EntropyRetries,
			})
			id, err := svc.Register(ctx, args[0], pw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"account_id": id, "name": args[0]})
		},
	}
}
