// Command oxyctl is an operator CLI for the oxy account service: remote
// register/login/passwd over gRPC plus offline credential tooling.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// app holds global flags and injectable IO for the command tree.
type app struct {
	addr       string
	caPath     string
	skipVerify bool
	plaintext  bool
	timeout    time.Duration
	configPath string

	in       io.Reader
	secrets  *bufio.Scanner
	dialOpts []grpc.DialOption
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "oxyctl",
		Short:         "Account service operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if a.in == nil {
				a.in = cmd.InOrStdin()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.addr, "addr", "localhost:8443", "server address (host:port)")
	pf.StringVar(&a.caPath, "ca", "", "CA certificate (PEM) for server verification")
	pf.BoolVar(&a.skipVerify, "insecure", false, "skip TLS certificate verification")
	pf.BoolVar(&a.plaintext, "plaintext", false, "connect without TLS")
	pf.DurationVar(&a.timeout, "timeout", 15*time.Second, "per-command timeout")
	pf.StringVar(&a.configPath, "config", "", "server config file (create-account)")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newPasswdCmd(a),
		newHashCmd(a),
		newVerifyCmd(a),
		newInspectCmd(a),
		newCreateAccountCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fail(err)
	}
}

// readSecret returns the next line of input.
func (a *app) readSecret(what string) (string, error) {
	if a.secrets == nil {
		a.secrets = bufio.NewScanner(a.in)
	}
	if !a.secrets.Scan() {
		if err := a.secrets.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", what, err)
		}
		return "", fmt.Errorf("read %s: no input", what)
	}
	s := strings.TrimRight(a.secrets.Text(), "\r")
	if s == "" {
		return "", fmt.Errorf("read %s: empty", what)
	}
	return s, nil
}

func (a *app) context(parent context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.timeout)
}

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		//nolint:gosec // explicit operator opt-in
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

func (a *app) dial() (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if a.plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(a.caPath, a.skipVerify); err != nil {
			return nil, err
		}
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, a.dialOpts...)
	return grpc.NewClient(a.addr, opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitError carries a process exit code without printing anything extra.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func fail(err error) {
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
