package main

import (
	"github.com/spf13/cobra"

	grpcserver "github.com/and161185/oxy-accounts/internal/server/grpc"
)

// withClient dials the server, runs fn and closes the connection.
func (a *app) withClient(fn func(*grpcserver.AccountsClient) error) error {
	cc, err := a.dial()
	if err != nil {
		return err
	}
	defer cc.Close()
	return fn(grpcserver.NewAccountsClient(cc))
}

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register NAME",
		Short: "Create an account (password on stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readSecret("password")
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			return a.withClient(func(c *grpcserver.AccountsClient) error {
				resp, err := c.Register(ctx, &grpcserver.RegisterRequest{Name: args[0], Password: pw})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login NAME",
		Short: "Check an account's password (password on stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readSecret("password")
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			return a.withClient(func(c *grpcserver.AccountsClient) error {
				resp, err := c.Login(ctx, &grpcserver.LoginRequest{Name: args[0], Password: pw})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
}

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd NAME",
		Short: "Change a password (old then new password on stdin, one per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPw, err := a.readSecret("old password")
			if err != nil {
				return err
			}
			newPw, err := a.readSecret("new password")
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			return a.withClient(func(c *grpcserver.AccountsClient) error {
				if _, err := c.ChangePassword(ctx, &grpcserver.ChangePasswordRequest{
					Name:        args[0],
					OldPassword: oldPw,
					NewPassword: newPw,
				}); err != nil {
					return err
				}
				_, err := cmd.OutOrStdout().Write([]byte("password changed\n"))
				return err
			})
		},
	}
}
